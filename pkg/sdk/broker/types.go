// Package broker implements the session layer for the binary-options
// trading venue: one persistent WebSocket connection over which commands,
// subscriptions and broadcast events are multiplexed as JSON frames.
package broker

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultWSURL is the venue's WebSocket endpoint.
	DefaultWSURL = "wss://ws.iqoption.com/echo/websocket"
	// DefaultOrigin is sent as the Origin header during the handshake.
	DefaultOrigin = "https://iqoption.com"
	// DefaultUserAgent mimics a desktop browser; the venue rejects bare clients.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36"
)

// Envelope kinds for outbound frames.
const (
	kindSend        = "sendMessage"
	kindSubscribe   = "subscribeMessage"
	kindUnsubscribe = "unsubscribeMessage"
)

var (
	// ErrInvalidOperation is returned when a textual operation name does not
	// resolve to a known command. Raised before any data is sent.
	ErrInvalidOperation = errors.New("invalid operation name")
	// ErrInvalidSubscription is the subscription-side counterpart.
	ErrInvalidSubscription = errors.New("invalid subscription name")
	// ErrInvalidOptionType is returned by OpenOption for option type ids other
	// than 1 (binary-option) and 3 (turbo-option).
	ErrInvalidOptionType = errors.New("invalid option_type_id (binary-option is 1 and turbo-option is 3)")
	// ErrNotConnected is returned when an operation needs the socket and the
	// session is disconnected.
	ErrNotConnected = errors.New("broker is not connected")
)

// Envelope is one outbound JSON frame.
type Envelope struct {
	Name      string `json:"name"`
	RequestID string `json:"request_id"`
	LocalTime int64  `json:"local_time"`
	Msg       any    `json:"msg"`
}

// InboundEnvelope is one inbound JSON frame. Name "result" is the generic
// acknowledgement wrapper; any other name paired with a matching request id
// is the payload wrapper for the same logical operation.
type InboundEnvelope struct {
	Name      string          `json:"name"`
	RequestID string          `json:"request_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Msg       json.RawMessage `json:"msg"`
}

// Reply carries what a command or subscription call waited for.
type Reply struct {
	RequestID string
	// Result is the generic acknowledgement payload ("result" frame).
	Result json.RawMessage
	// Message is the substantive payload (non-"result" frame).
	Message json.RawMessage
}

// ReplyWant selects which inbound frames a call waits for. The zero value
// waits for nothing: the call returns as soon as the frame is written.
type ReplyWant struct {
	Result  bool
	Message bool
}

var (
	WantNothing = ReplyWant{}
	WantResult  = ReplyWant{Result: true}
	WantMessage = ReplyWant{Message: true}
	WantBoth    = ReplyWant{Result: true, Message: true}
)

// InstrumentType is the venue's option instrument category.
type InstrumentType string

const (
	TurboOption  InstrumentType = "turbo-option"
	BinaryOption InstrumentType = "binary-option"
)

// Order/position subscriptions use the short category names.
const (
	TurboInstrument  = "turbo"
	BinaryInstrument = "binary"
)

// Profile is the subset of the venue profile the session itself needs,
// plus commonly inspected identity fields.
type Profile struct {
	UserID    int64  `json:"user_id"`
	BalanceID int64  `json:"balance_id"`
	GroupID   int64  `json:"group_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Birthdate int64  `json:"birthdate"`

	Nationality     string   `json:"nationality"`
	ConfirmedPhones []string `json:"confirmed_phones"`
}

// ClientProfile is the public client identity record.
type ClientProfile struct {
	UserID           int64  `json:"user_id"`
	Flag             string `json:"flag"`
	ImgURL           string `json:"img_url"`
	IsVip            bool   `json:"is_vip"`
	RegistrationTime int64  `json:"registration_time"`
}

// Balance is one account balance. Amount and EnrolledAmount are mutated in
// place by balance-changed events.
type Balance struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Type           int     `json:"type"`
	Amount         float64 `json:"amount"`
	EnrolledAmount float64 `json:"enrolled_amount"`
	Currency       string  `json:"currency"`
	IsFiat         bool    `json:"is_fiat"`
	IsMarginal     bool    `json:"is_marginal"`
}

// BalanceChange is the payload of a balance-changed event.
type BalanceChange struct {
	CurrentBalance ChangedBalance `json:"current_balance"`
}

// ChangedBalance mirrors Balance but carries the post-change amount in
// new_amount, the shape the billing service broadcasts.
type ChangedBalance struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Type           int     `json:"type"`
	NewAmount      float64 `json:"new_amount"`
	EnrolledAmount float64 `json:"enrolled_amount"`
	Currency       string  `json:"currency"`
	IsFiat         bool    `json:"is_fiat"`
	IsMarginal     bool    `json:"is_marginal"`
}

// CommissionEvent is emitted once per asset for both the bulk commission
// snapshot and the incremental commission-changed message. The cached
// profit percentage for the asset is 100 - Value.
type CommissionEvent struct {
	InstrumentType InstrumentType
	ActiveID       int64
	Value          float64
}

// commissionsMsg is the bulk snapshot payload.
type commissionsMsg struct {
	InstrumentType InstrumentType `json:"instrument_type"`
	Items          []struct {
		ActiveID int64   `json:"active_id"`
		Value    float64 `json:"value"`
	} `json:"items"`
}

// commissionChangedMsg is the incremental payload.
type commissionChangedMsg struct {
	InstrumentType InstrumentType `json:"instrument_type"`
	ActiveID       int64          `json:"active_id"`
	Commission     struct {
		Value float64 `json:"value"`
	} `json:"commission"`
}

// Config holds transport settings for a Broker. The zero value of any field
// falls back to the corresponding default.
type Config struct {
	URL              string
	Origin           string
	UserAgent        string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns the venue defaults.
func DefaultConfig() *Config {
	return &Config{
		URL:              DefaultWSURL,
		Origin:           DefaultOrigin,
		UserAgent:        DefaultUserAgent,
		HandshakeTimeout: 30 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}
