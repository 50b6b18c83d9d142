package broker

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Params is the loose parameter bag for the name-based lookup path. Typed
// command/subscription variants are preferred; the registry exists for
// callers that carry operation names as data.
type Params struct {
	RequestID string
	SSID      string

	InstrumentType  InstrumentType
	InstrumentTypes []InstrumentType
	Instrument      InstrumentType
	ActiveID        int64
	AssetID         int64
	Size            int

	UserID        int64
	UserBalanceID int64

	OptionTypeID  int
	Direction     string
	Expired       int64
	Price         float64
	Value         decimal.Decimal
	ProfitPercent float64
	OptionsIDs    []int64
	IDs           []int64

	Offset int
	Limit  int

	PlatformID        string
	IdleDuration      int
	SelectedAssetID   int64
	SelectedAssetType int

	UserTime      string
	HeartbeatTime string
}

// CommandByName resolves a textual operation name to its command variant.
// Unknown names fail with ErrInvalidOperation before anything is sent: a
// typo must fail fast, not hang forever waiting for a reply that will
// never come.
func CommandByName(name string, p Params) (Command, error) {
	switch name {
	case "authenticate":
		return Authenticate{SSID: p.SSID, RequestID: p.RequestID}, nil
	case "setOptions":
		return SetOptions{RequestID: p.RequestID}, nil
	case "heartbeat":
		return Heartbeat{UserTime: p.UserTime, HeartbeatTime: p.HeartbeatTime}, nil
	case "core.get-profile":
		return GetProfile{}, nil
	case "get-balances":
		return GetBalances{}, nil
	case "get-user-profile-client":
		return GetUserProfileClient{UserID: p.UserID}, nil
	case "get-commissions":
		return GetCommissions{InstrumentType: p.InstrumentType}, nil
	case "get-traders-mood":
		return GetTradersMood{Instrument: p.Instrument, ActiveID: p.ActiveID}, nil
	case "get-additional-blocks":
		return GetAdditionalBlocks{}, nil
	case "get-verification-init-data":
		return GetVerificationInitData{}, nil
	case "tech-instruments.get-standard-library":
		return GetStandardLibrary{}, nil
	case "get-initialization-data":
		return GetInitializationData{}, nil
	case "update-user-availability":
		return UpdateUserAvailability{
			PlatformID:        p.PlatformID,
			IdleDuration:      p.IdleDuration,
			SelectedAssetID:   p.SelectedAssetID,
			SelectedAssetType: p.SelectedAssetType,
		}, nil
	case "portfolio.get-orders":
		return GetOrders{UserBalanceID: p.UserBalanceID}, nil
	case "portfolio.get-positions":
		return GetPositions{
			Offset:          p.Offset,
			Limit:           p.Limit,
			UserBalanceID:   p.UserBalanceID,
			InstrumentTypes: p.InstrumentTypes,
			InstrumentType:  p.InstrumentType,
		}, nil
	case "binary-options.open-option":
		return OpenOption{
			UserBalanceID: p.UserBalanceID,
			ActiveID:      p.ActiveID,
			OptionTypeID:  p.OptionTypeID,
			Direction:     p.Direction,
			Expired:       p.Expired,
			Price:         p.Price,
			Value:         p.Value,
			ProfitPercent: p.ProfitPercent,
		}, nil
	case "sell-options":
		return SellOptions{OptionsIDs: p.OptionsIDs}, nil
	case "subscribe-positions":
		return SubscribePositions{IDs: p.IDs}, nil
	}
	return nil, errors.Wrapf(ErrInvalidOperation, "%q", name)
}

// SubscriptionByName resolves a textual topic name to its subscription
// variant. Unknown names fail with ErrInvalidSubscription.
func SubscriptionByName(name string, p Params) (Subscription, error) {
	switch name {
	case "profile-changed":
		return ProfileChanged{}, nil
	case "candle-generated":
		return CandleGenerated{ActiveID: p.ActiveID, Size: p.Size}, nil
	case "internal-billing.balance-created",
		"internal-billing.auth-balance-changed",
		"internal-billing.balance-changed",
		"internal-billing.marginal-changed":
		return billingTopic(name), nil
	case "commission-changed":
		return CommissionChanged{InstrumentType: p.InstrumentType}, nil
	case "portfolio.order-changed":
		return OrderChanged{InstrumentType: string(p.InstrumentType)}, nil
	case "portfolio.position-changed":
		return PositionChanged{InstrumentType: p.InstrumentType, UserBalanceID: p.UserBalanceID}, nil
	case "positions-state":
		return PositionsState{}, nil
	case "price-splitter.client-buyback-generated":
		return ClientBuybackGenerated{AssetID: p.AssetID, InstrumentType: p.InstrumentType}, nil
	case "traders-mood-changed":
		return TradersMoodChanged{Instrument: p.Instrument, ActiveID: p.ActiveID}, nil
	}
	return nil, errors.Wrapf(ErrInvalidSubscription, "%q", name)
}
