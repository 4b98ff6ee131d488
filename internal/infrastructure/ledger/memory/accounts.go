package memory

import (
	"context"
	"sort"
	"time"

	exchange "main/internal/domain/entity/exchange"
	users "main/internal/domain/entity/users"

	"github.com/google/uuid"
)

// CreateUser stores the user and provisions the cash balance plus a zero
// quantity balance for every known instrument, atomically.
func (s *Store) CreateUser(ctx context.Context, user *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return users.ErrEmailTaken
	}
	stored := *user
	s.userRows[user.UID] = &stored
	s.usersByEmail[user.Email] = user.UID

	now := time.Now().UTC()
	s.cash[user.UID] = &cashRow{lock: newRowLock(), balance: exchange.CashBalance{
		UserUID:   user.UID,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	for instrumentUID := range s.instruments {
		key := qbKey{userUID: user.UID, instrumentUID: instrumentUID}
		s.quantity[key] = &quantityRow{lock: newRowLock(), balance: exchange.QuantityBalance{
			UserUID:       user.UID,
			InstrumentUID: instrumentUID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}}
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.usersByEmail[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	snapshot := *s.userRows[uid]
	return &snapshot, nil
}

func (s *Store) GetUser(ctx context.Context, uid uuid.UUID) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.userRows[uid]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	snapshot := *user
	return &snapshot, nil
}

func (s *Store) CreateToken(ctx context.Context, token *users.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Value] = token.UserUID
	return nil
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.tokens[token]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	user, ok := s.userRows[uid]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	snapshot := *user
	return &snapshot, nil
}

// CreateInstrument stores the instrument and provisions a zero quantity
// balance for every known user.
func (s *Store) CreateInstrument(ctx context.Context, instrument *exchange.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *instrument
	s.instruments[instrument.UID] = &stored

	now := time.Now().UTC()
	for userUID := range s.userRows {
		key := qbKey{userUID: userUID, instrumentUID: instrument.UID}
		if _, exists := s.quantity[key]; exists {
			continue
		}
		s.quantity[key] = &quantityRow{lock: newRowLock(), balance: exchange.QuantityBalance{
			UserUID:       userUID,
			InstrumentUID: instrument.UID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}}
	}
	return nil
}

func (s *Store) GetInstrument(ctx context.Context, uid uuid.UUID) (*exchange.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instrument, ok := s.instruments[uid]
	if !ok {
		return nil, exchange.ErrInstrumentNotFound
	}
	snapshot := *instrument
	return &snapshot, nil
}

func (s *Store) UpdateInstrument(ctx context.Context, instrument *exchange.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instruments[instrument.UID]; !ok {
		return exchange.ErrInstrumentNotFound
	}
	instrument.UpdatedAt = time.Now().UTC()
	stored := *instrument
	s.instruments[instrument.UID] = &stored
	return nil
}

func (s *Store) ListInstruments(ctx context.Context) ([]*exchange.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*exchange.Instrument, 0, len(s.instruments))
	for _, instrument := range s.instruments {
		snapshot := *instrument
		result = append(result, &snapshot)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
