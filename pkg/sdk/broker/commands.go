package broker

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Command is one outbound operation the venue understands. The set is
// closed: each variant carries its own typed parameters and shapes its own
// envelope body, so a misspelled operation cannot reach the wire.
type Command interface {
	// CommandName is the protocol operation name.
	CommandName() string
	// envelope fills the outbound envelope for this command. Session-derived
	// defaults (user id, group id, profit table, expiration anchor) come from
	// the snapshot.
	envelope(env *Envelope, s *stateSnapshot) error
}

// commandMsg is the nested shape most commands use inside the sendMessage
// envelope.
type commandMsg struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Body    any    `json:"body,omitempty"`
}

// stateSnapshot is the slice of session state envelope building may read.
type stateSnapshot struct {
	profile    *Profile
	profits    ProfitTable
	expiration int64
}

func (s *stateSnapshot) userID() int64 {
	if s.profile == nil {
		return 0
	}
	return s.profile.UserID
}

func (s *stateSnapshot) groupID() int64 {
	if s.profile == nil {
		return 0
	}
	return s.profile.GroupID
}

func (s *stateSnapshot) profitFor(it InstrumentType, activeID int64) float64 {
	if s.profits == nil {
		return 0
	}
	return s.profits[it][activeID]
}

// Authenticate presents the session token. It is a top-level command: the
// envelope name is the operation itself and the request id is clock-derived
// rather than counter-allocated.
type Authenticate struct {
	SSID      string
	RequestID string // optional explicit id
}

func (Authenticate) CommandName() string { return "authenticate" }

func (c Authenticate) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Name = "authenticate"
	env.RequestID = c.RequestID
	if env.RequestID == "" {
		env.RequestID = randomRequestID()
	}
	env.Msg = map[string]any{
		"ssid":              c.SSID,
		"protocol":          3,
		"session_id":        "",
		"client_session_id": "",
	}
	return nil
}

// SetOptions asks the venue to send "result" acknowledgements for every
// request. Top-level command like Authenticate.
type SetOptions struct {
	RequestID string
}

func (SetOptions) CommandName() string { return "setOptions" }

func (c SetOptions) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Name = "setOptions"
	env.RequestID = c.RequestID
	if env.RequestID == "" {
		env.RequestID = randomRequestID()
	}
	env.Msg = map[string]any{"sendResults": true}
	return nil
}

// Heartbeat echoes a server heartbeat. The session sends one automatically
// for every heartbeat broadcast; it is exported for completeness.
type Heartbeat struct {
	UserTime      string
	HeartbeatTime string
}

func (Heartbeat) CommandName() string { return "heartbeat" }

func (c Heartbeat) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Name = "heartbeat"
	env.Msg = map[string]any{
		"userTime":      c.UserTime,
		"heartbeatTime": c.HeartbeatTime,
	}
	return nil
}

// GetProfile fetches the account profile.
type GetProfile struct{}

func (GetProfile) CommandName() string { return "core.get-profile" }

func (GetProfile) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "core.get-profile", Version: "1.0", Body: map[string]any{}}
	return nil
}

// GetBalances fetches every balance of the default account types.
type GetBalances struct{}

func (GetBalances) CommandName() string { return "get-balances" }

func (GetBalances) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-balances", Version: "1.0", Body: map[string]any{
		"types_ids":                []int{1, 4, 2},
		"tournaments_statuses_ids": []int{3, 2},
	}}
	return nil
}

// GetUserProfileClient fetches the public client record. UserID defaults to
// the session profile's user id.
type GetUserProfileClient struct {
	UserID int64
}

func (GetUserProfileClient) CommandName() string { return "get-user-profile-client" }

func (c GetUserProfileClient) envelope(env *Envelope, s *stateSnapshot) error {
	userID := c.UserID
	if userID == 0 {
		userID = s.userID()
	}
	env.Msg = commandMsg{Name: "get-user-profile-client", Version: "1.0", Body: map[string]any{
		"user_id": userID,
	}}
	return nil
}

// GetCommissions fetches the commission table for one instrument category.
// The user group id comes from the session profile.
type GetCommissions struct {
	InstrumentType InstrumentType
}

func (GetCommissions) CommandName() string { return "get-commissions" }

func (c GetCommissions) envelope(env *Envelope, s *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-commissions", Version: "1.0", Body: map[string]any{
		"instrument_type": c.InstrumentType,
		"user_group_id":   s.groupID(),
	}}
	return nil
}

// GetTradersMood fetches the call/put sentiment split for one asset.
type GetTradersMood struct {
	Instrument InstrumentType
	ActiveID   int64
}

func (GetTradersMood) CommandName() string { return "get-traders-mood" }

func (c GetTradersMood) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-traders-mood", Version: "1.0", Body: map[string]any{
		"instrument": c.Instrument,
		"asset_id":   c.ActiveID,
	}}
	return nil
}

// GetAdditionalBlocks fetches the venue's auxiliary UI blocks.
type GetAdditionalBlocks struct{}

func (GetAdditionalBlocks) CommandName() string { return "get-additional-blocks" }

func (GetAdditionalBlocks) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-additional-blocks", Version: "1.0"}
	return nil
}

// GetVerificationInitData fetches KYC verification bootstrap data.
type GetVerificationInitData struct{}

func (GetVerificationInitData) CommandName() string { return "get-verification-init-data" }

func (GetVerificationInitData) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-verification-init-data", Version: "2.0"}
	return nil
}

// GetStandardLibrary fetches the technical-instruments script library.
type GetStandardLibrary struct{}

func (GetStandardLibrary) CommandName() string { return "tech-instruments.get-standard-library" }

func (GetStandardLibrary) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "tech-instruments.get-standard-library", Version: "3.0", Body: map[string]any{
		"version":         4657112160311,
		"runtime_version": 109,
	}}
	return nil
}

// GetInitializationData fetches the bulk bootstrap payload.
type GetInitializationData struct{}

func (GetInitializationData) CommandName() string { return "get-initialization-data" }

func (GetInitializationData) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "get-initialization-data", Version: "3.0", Body: map[string]any{}}
	return nil
}

// UpdateUserAvailability reports platform presence.
type UpdateUserAvailability struct {
	PlatformID        string
	IdleDuration      int
	SelectedAssetID   int64
	SelectedAssetType int
}

func (UpdateUserAvailability) CommandName() string { return "update-user-availability" }

func (c UpdateUserAvailability) envelope(env *Envelope, _ *stateSnapshot) error {
	platform := c.PlatformID
	if platform == "" {
		platform = "9"
	}
	assetID := c.SelectedAssetID
	if assetID == 0 {
		assetID = 816
	}
	assetType := c.SelectedAssetType
	if assetType == 0 {
		assetType = 3
	}
	env.Msg = commandMsg{Name: "update-user-availability", Version: "1.1", Body: map[string]any{
		"platform_id":         platform,
		"idle_duration":       c.IdleDuration,
		"selected_asset_id":   assetID,
		"selected_asset_type": assetType,
	}}
	return nil
}

// GetOrders fetches deferred orders for one balance.
type GetOrders struct {
	UserBalanceID int64
}

func (GetOrders) CommandName() string { return "portfolio.get-orders" }

func (c GetOrders) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "portfolio.get-orders", Version: "2.0", Body: map[string]any{
		"user_balance_id": c.UserBalanceID,
		"kind":            "deferred",
	}}
	return nil
}

// GetPositions pages through positions of the given instrument types.
// Limit 0 means the protocol default of 30.
type GetPositions struct {
	Offset          int
	Limit           int
	UserBalanceID   int64
	InstrumentTypes []InstrumentType
	InstrumentType  InstrumentType // used when InstrumentTypes is empty
}

func (GetPositions) CommandName() string { return "portfolio.get-positions" }

func (c GetPositions) envelope(env *Envelope, _ *stateSnapshot) error {
	limit := c.Limit
	if limit == 0 {
		limit = 30
	}
	kinds := c.InstrumentTypes
	if len(kinds) == 0 {
		kinds = []InstrumentType{c.InstrumentType}
	}
	env.Msg = commandMsg{Name: "portfolio.get-positions", Version: "4.0", Body: map[string]any{
		"offset":           c.Offset,
		"limit":            limit,
		"user_balance_id":  c.UserBalanceID,
		"instrument_types": kinds,
	}}
	return nil
}

// OpenOption places a binary or turbo option order.
type OpenOption struct {
	UserBalanceID int64
	ActiveID      int64
	// OptionTypeID selects the instrument: 1 is binary-option, 3 is turbo-option.
	OptionTypeID int
	// Direction is "call" or "put".
	Direction string
	// Expired below one billion is read as minutes ahead of the current
	// expiration anchor; larger values are absolute epoch seconds.
	Expired int64
	// Price is the amount to invest.
	Price float64
	// Value is the asset price at entry; it is sent without its decimal
	// separator, e.g. bitcoin 23844.132 goes out as 23844132.
	Value decimal.Decimal
	// ProfitPercent 0 takes the cached commission-derived profit for the asset.
	ProfitPercent float64
}

func (OpenOption) CommandName() string { return "binary-options.open-option" }

func (c OpenOption) envelope(env *Envelope, s *stateSnapshot) error {
	var instrument InstrumentType
	switch c.OptionTypeID {
	case 1:
		instrument = BinaryOption
	case 3:
		instrument = TurboOption
	default:
		return ErrInvalidOptionType
	}

	value, err := minorUnits(c.Value)
	if err != nil {
		return err
	}

	profit := c.ProfitPercent
	if profit == 0 {
		profit = s.profitFor(instrument, c.ActiveID)
	}

	env.Msg = commandMsg{Name: "binary-options.open-option", Version: "1.0", Body: map[string]any{
		"user_balance_id": c.UserBalanceID,
		"active_id":       c.ActiveID,
		"option_type_id":  c.OptionTypeID,
		"direction":       c.Direction,
		"expired":         resolveExpiration(s.expiration, c.Expired),
		"refund_value":    0,
		"price":           c.Price,
		"value":           value,
		"profit_percent":  profit,
	}}
	return nil
}

// SellOptions closes open options before expiration.
type SellOptions struct {
	OptionsIDs []int64
}

func (SellOptions) CommandName() string { return "sell-options" }

func (c SellOptions) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "sell-options", Version: "3.0", Body: map[string]any{
		"options_ids": c.OptionsIDs,
	}}
	return nil
}

// SubscribePositions asks for frequent position updates for specific ids.
type SubscribePositions struct {
	IDs []int64
}

func (SubscribePositions) CommandName() string { return "subscribe-positions" }

func (c SubscribePositions) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = commandMsg{Name: "subscribe-positions", Version: "1.0", Body: map[string]any{
		"frequency": "frequent",
		"ids":       c.IDs,
	}}
	return nil
}

// RawCommand sends a caller-supplied msg body verbatim, bypassing the
// registry. Correlation still applies.
type RawCommand struct {
	Msg any
}

func (RawCommand) CommandName() string { return "custom" }

func (c RawCommand) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = c.Msg
	return nil
}

// minorUnits strips the decimal separator from a price, turning it into the
// integer minor-unit representation the order body expects.
func minorUnits(d decimal.Decimal) (int64, error) {
	s := strings.Replace(d.String(), ".", "", 1)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "value %s does not fit the wire format", d)
	}
	return n, nil
}
