package account

import "main/internal/schema"

// ApplyPosition applies one private position event, sequence-gated.
// Snapshots replace the net position; deltas add to it.
func (s *Store) ApplyPosition(u schema.PositionUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(u.Ts)
	if u.Seq <= s.posSeq {
		return false
	}

	switch u.Kind {
	case schema.UpdateKindSnapshot:
		s.position = u.Position
		if u.AvgPrice != 0 {
			s.posAvgPrice = u.AvgPrice
		}
	case schema.UpdateKindDelta:
		s.position += u.Position
		if u.AvgPrice != 0 {
			s.posAvgPrice = u.AvgPrice
		}
	default:
		return false
	}
	s.posSeq = u.Seq
	return true
}

// ApplyBalance applies one private balance event, sequence-gated per
// currency so a multi-currency push sharing one sequence applies fully.
func (s *Store) ApplyBalance(u schema.BalanceUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(u.Ts)
	ccy := u.Currency.String()
	if ccy == "" {
		return false
	}
	existing, ok := s.balances[ccy]
	if ok && u.Seq <= existing.Seq {
		return false
	}

	switch u.Kind {
	case schema.UpdateKindSnapshot:
		s.balances[ccy] = Balance{
			Currency:  ccy,
			Available: u.Available,
			Frozen:    u.Frozen,
			Seq:       u.Seq,
			Ts:        u.Ts,
		}
	case schema.UpdateKindDelta:
		existing.Currency = ccy
		existing.Available += u.Available
		existing.Frozen += u.Frozen
		existing.Seq = u.Seq
		existing.Ts = u.Ts
		s.balances[ccy] = existing
	default:
		return false
	}
	return true
}

// Position returns the net signed position and its average entry price.
func (s *Store) Position() (schema.Quantity, schema.Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.posAvgPrice
}

// Balance returns one currency row.
func (s *Store) Balance(ccy string) (Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[ccy]
	return b, ok
}

// Balances returns a copy of every balance row.
func (s *Store) Balances() map[string]Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Balance, len(s.balances))
	for ccy, b := range s.balances {
		out[ccy] = b
	}
	return out
}
