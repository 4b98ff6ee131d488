package exchange

import (
	"context"
	"errors"
	"time"

	domain "main/internal/domain/entity/exchange"

	"github.com/google/uuid"
)

var (
	ErrInstrumentNameRequired = errors.New("instrument name is required")
	ErrInvalidStatus          = errors.New("invalid instrument status")
)

// CreateInstrument registers a new tradable instrument. The repository
// provisions a zero quantity balance for every existing user.
func (s *Service) CreateInstrument(ctx context.Context, name string) (*domain.Instrument, error) {
	if name == "" {
		return nil, ErrInstrumentNameRequired
	}
	now := time.Now().UTC()
	instrument := &domain.Instrument{
		UID:       uuid.New(),
		Name:      name,
		Status:    domain.InstrumentStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.instruments.CreateInstrument(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

// GetInstrument returns an instrument by id.
func (s *Service) GetInstrument(ctx context.Context, uid uuid.UUID) (*domain.Instrument, error) {
	return s.instruments.GetInstrument(ctx, uid)
}

// ListInstruments returns the full catalog, deleted instruments included.
func (s *Service) ListInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	return s.instruments.ListInstruments(ctx)
}

// UpdateInstrument changes the name and lifecycle status of an instrument.
func (s *Service) UpdateInstrument(ctx context.Context, uid uuid.UUID, name string, status domain.InstrumentStatus) (*domain.Instrument, error) {
	if name == "" {
		return nil, ErrInstrumentNameRequired
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	instrument, err := s.instruments.GetInstrument(ctx, uid)
	if err != nil {
		return nil, err
	}
	instrument.Name = name
	instrument.Status = status
	instrument.UpdatedAt = time.Now().UTC()
	if err := s.instruments.UpdateInstrument(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

// DeleteInstrument soft-deletes an instrument. Its history and balances
// stay in place; new orders are rejected.
func (s *Service) DeleteInstrument(ctx context.Context, uid uuid.UUID) (*domain.Instrument, error) {
	instrument, err := s.instruments.GetInstrument(ctx, uid)
	if err != nil {
		return nil, err
	}
	instrument.Status = domain.InstrumentStatusDeleted
	instrument.UpdatedAt = time.Now().UTC()
	if err := s.instruments.UpdateInstrument(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}
