package broker

// Subscription is one broadcast topic the session can subscribe to or
// unsubscribe from. Unsubscribing must present the same filter parameters
// the subscription was opened with; the session does not remember them.
type Subscription interface {
	// SubscriptionName is the protocol topic name.
	SubscriptionName() string
	envelope(env *Envelope, s *stateSnapshot) error
}

// subscriptionMsg is the msg shape of subscribeMessage/unsubscribeMessage
// envelopes.
type subscriptionMsg struct {
	Name    string              `json:"name"`
	Version string              `json:"version,omitempty"`
	Params  *subscriptionParams `json:"params,omitempty"`
}

type subscriptionParams struct {
	RoutingFilters any `json:"routingFilters"`
}

// ProfileChanged follows account profile updates.
type ProfileChanged struct{}

func (ProfileChanged) SubscriptionName() string { return "profile-changed" }

func (ProfileChanged) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "profile-changed", Version: "1.0"}
	return nil
}

// CandleGenerated streams generated price candles for one asset and candle
// size (seconds).
type CandleGenerated struct {
	ActiveID int64
	Size     int
}

func (CandleGenerated) SubscriptionName() string { return "candle-generated" }

func (c CandleGenerated) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "candle-generated", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"active_id": c.ActiveID,
			"size":      c.Size,
		},
	}}
	return nil
}

// billingTopic covers the four internal-billing broadcasts, which share one
// shape: version 1.0 and empty routing filters.
type billingTopic string

func (t billingTopic) SubscriptionName() string { return string(t) }

func (t billingTopic) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: string(t), Version: "1.0", Params: &subscriptionParams{
		RoutingFilters: map[string]any{},
	}}
	return nil
}

var (
	BalanceCreated     Subscription = billingTopic("internal-billing.balance-created")
	AuthBalanceChanged Subscription = billingTopic("internal-billing.auth-balance-changed")
	BalanceChanged     Subscription = billingTopic("internal-billing.balance-changed")
	MarginalChanged    Subscription = billingTopic("internal-billing.marginal-changed")
)

// CommissionChanged follows commission updates for one instrument category.
// The user group id filter comes from the session profile.
type CommissionChanged struct {
	InstrumentType InstrumentType
}

func (CommissionChanged) SubscriptionName() string { return "commission-changed" }

func (c CommissionChanged) envelope(env *Envelope, s *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "commission-changed", Version: "1.0", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"instrument_type": c.InstrumentType,
			"user_group_id":   s.groupID(),
		},
	}}
	return nil
}

// OrderChanged follows order updates for one instrument category ("turbo"
// or "binary"). The user id filter comes from the session profile.
type OrderChanged struct {
	InstrumentType string
}

func (OrderChanged) SubscriptionName() string { return "portfolio.order-changed" }

func (c OrderChanged) envelope(env *Envelope, s *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "portfolio.order-changed", Version: "2.0", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"user_id":         s.userID(),
			"instrument_type": c.InstrumentType,
		},
	}}
	return nil
}

// PositionChanged follows position updates for one instrument category and
// balance.
type PositionChanged struct {
	InstrumentType InstrumentType
	UserBalanceID  int64
}

func (PositionChanged) SubscriptionName() string { return "portfolio.position-changed" }

func (c PositionChanged) envelope(env *Envelope, s *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "portfolio.position-changed", Version: "3.0", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"user_id":         s.userID(),
			"user_balance_id": c.UserBalanceID,
			"instrument_type": c.InstrumentType,
		},
	}}
	return nil
}

// PositionsState follows the aggregated positions-state broadcast.
type PositionsState struct{}

func (PositionsState) SubscriptionName() string { return "positions-state" }

func (PositionsState) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "positions-state"}
	return nil
}

// ClientBuybackGenerated follows buyback price quotes for one asset.
type ClientBuybackGenerated struct {
	AssetID        int64
	InstrumentType InstrumentType
}

func (ClientBuybackGenerated) SubscriptionName() string {
	return "price-splitter.client-buyback-generated"
}

func (c ClientBuybackGenerated) envelope(env *Envelope, s *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "price-splitter.client-buyback-generated", Version: "1.0", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"asset_id":        c.AssetID,
			"instrument_type": c.InstrumentType,
			"user_group_id":   s.groupID(),
		},
	}}
	return nil
}

// TradersMoodChanged follows sentiment updates for one asset.
type TradersMoodChanged struct {
	Instrument InstrumentType
	ActiveID   int64
}

func (TradersMoodChanged) SubscriptionName() string { return "traders-mood-changed" }

func (c TradersMoodChanged) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = subscriptionMsg{Name: "traders-mood-changed", Params: &subscriptionParams{
		RoutingFilters: map[string]any{
			"instrument": c.Instrument,
			"asset_id":   c.ActiveID,
		},
	}}
	return nil
}

// RawSubscription sends a caller-supplied msg body verbatim.
type RawSubscription struct {
	Msg any
}

func (RawSubscription) SubscriptionName() string { return "custom" }

func (c RawSubscription) envelope(env *Envelope, _ *stateSnapshot) error {
	env.Msg = c.Msg
	return nil
}
