package broker

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ProfitTable caches the profit percentage per instrument category and
// asset, derived from commission broadcasts as 100 minus the latest
// commission value.
type ProfitTable map[InstrumentType]map[int64]float64

// sessionState is everything the session caches between connect and
// disconnect. A fresh value is built for every connection, so nothing from
// a previous session leaks into the next one.
type sessionState struct {
	clock sessionClock
	ids   idAllocator

	profile  *Profile
	client   *ClientProfile
	balances []Balance

	expiration int64
	profits    ProfitTable
}

func newSessionState() *sessionState {
	return &sessionState{
		clock:   newSessionClock(),
		profits: make(ProfitTable),
	}
}

func (s *sessionState) snapshot() *stateSnapshot {
	return &stateSnapshot{
		profile:    s.profile,
		profits:    s.profits,
		expiration: s.expiration,
	}
}

// applyTimeSync moves the expiration anchor from a server time broadcast
// and returns the broadcast value (epoch milliseconds).
func (s *sessionState) applyTimeSync(raw json.RawMessage) (int64, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, errors.Wrap(err, "timeSync payload")
	}
	s.expiration = expirationAnchor(time.UnixMilli(ms))
	return ms, nil
}

// optionInstrument reports whether commissions for it belong in the profit
// table. Other categories (forex, cfd, crypto) pass through untouched.
func optionInstrument(it InstrumentType) bool {
	return it == TurboOption || it == BinaryOption
}

// applyCommissions folds a bulk commission snapshot into the profit table
// and returns one event per asset covered.
func (s *sessionState) applyCommissions(raw json.RawMessage) ([]CommissionEvent, error) {
	var msg commissionsMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "commissions payload")
	}
	if !optionInstrument(msg.InstrumentType) {
		return nil, nil
	}
	events := make([]CommissionEvent, 0, len(msg.Items))
	for _, item := range msg.Items {
		s.setProfit(msg.InstrumentType, item.ActiveID, item.Value)
		events = append(events, CommissionEvent{
			InstrumentType: msg.InstrumentType,
			ActiveID:       item.ActiveID,
			Value:          item.Value,
		})
	}
	return events, nil
}

// applyCommissionChange folds an incremental commission update into the
// profit table.
func (s *sessionState) applyCommissionChange(raw json.RawMessage) (CommissionEvent, error) {
	var msg commissionChangedMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return CommissionEvent{}, errors.Wrap(err, "commission-changed payload")
	}
	if !optionInstrument(msg.InstrumentType) {
		return CommissionEvent{}, nil
	}
	s.setProfit(msg.InstrumentType, msg.ActiveID, msg.Commission.Value)
	return CommissionEvent{
		InstrumentType: msg.InstrumentType,
		ActiveID:       msg.ActiveID,
		Value:          msg.Commission.Value,
	}, nil
}

func (s *sessionState) setProfit(it InstrumentType, activeID int64, commission float64) {
	table := s.profits[it]
	if table == nil {
		table = make(map[int64]float64)
		s.profits[it] = table
	}
	table[activeID] = 100 - commission
}

// applyBalances replaces the balance list with a fresh snapshot.
func (s *sessionState) applyBalances(raw json.RawMessage) ([]Balance, error) {
	var balances []Balance
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, errors.Wrap(err, "balances payload")
	}
	s.balances = balances
	return balances, nil
}

// applyBalanceChange folds a balance-changed broadcast into the cached
// list: a known balance is updated in place, an unknown one is appended.
func (s *sessionState) applyBalanceChange(raw json.RawMessage) (*BalanceChange, error) {
	var change BalanceChange
	if err := json.Unmarshal(raw, &change); err != nil {
		return nil, errors.Wrap(err, "balance-changed payload")
	}
	cur := change.CurrentBalance
	for i := range s.balances {
		if s.balances[i].ID == cur.ID {
			s.balances[i].Amount = cur.NewAmount
			s.balances[i].EnrolledAmount = cur.EnrolledAmount
			return &change, nil
		}
	}
	s.balances = append(s.balances, Balance{
		ID:             cur.ID,
		UserID:         cur.UserID,
		Type:           cur.Type,
		Amount:         cur.NewAmount,
		EnrolledAmount: cur.EnrolledAmount,
		Currency:       cur.Currency,
		IsFiat:         cur.IsFiat,
		IsMarginal:     cur.IsMarginal,
	})
	return &change, nil
}

// applyProfile stores the account profile fetched during the handshake.
func (s *sessionState) applyProfile(raw json.RawMessage) (*Profile, error) {
	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, errors.Wrap(err, "profile payload")
	}
	s.profile = &profile
	return &profile, nil
}

// applyClientProfile stores the public client record.
func (s *sessionState) applyClientProfile(raw json.RawMessage) (*ClientProfile, error) {
	var client ClientProfile
	if err := json.Unmarshal(raw, &client); err != nil {
		return nil, errors.Wrap(err, "user-profile-client payload")
	}
	s.client = &client
	return &client, nil
}
