package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"emitra-backend/internal/models"
)

// LocationService keeps each user's latest reported position.
type LocationService struct {
	store KeyValueStore
	ttl   time.Duration
}

func NewLocationService(store KeyValueStore, ttl time.Duration) *LocationService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &LocationService{store: store, ttl: ttl}
}

func ValidatePosition(p models.Position) error {
	fieldErrors := make(map[string]string)
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		fieldErrors["latitude"] = "Latitude must be between -90 and 90"
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		fieldErrors["longitude"] = "Longitude must be between -180 and 180"
	}
	if p.Accuracy != nil && *p.Accuracy < 0 {
		fieldErrors["accuracy"] = "Accuracy cannot be negative"
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

func (s *LocationService) Update(ctx context.Context, userID uuid.UUID, p models.Position) (*models.Position, error) {
	if err := ValidatePosition(p); err != nil {
		return nil, err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	data, _ := json.Marshal(p)
	if err := s.store.Set(ctx, locationKey(userID), string(data), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store position: %w", err)
	}
	return &p, nil
}

func (s *LocationService) Latest(ctx context.Context, userID uuid.UUID) (*models.Position, error) {
	raw, err := s.store.Get(ctx, locationKey(userID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, &NotFoundError{Message: "Your location is not available."}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	var p models.Position
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("corrupt position: %w", err)
	}
	return &p, nil
}

// Resolve returns the position in req when present and valid, otherwise the
// latest stored one.
func (s *LocationService) Resolve(ctx context.Context, userID uuid.UUID, req models.LocationRequest) (*models.Position, error) {
	if req.HasPosition() {
		p := req.Position()
		if err := ValidatePosition(p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return s.Latest(ctx, userID)
}

func locationKey(userID uuid.UUID) string { return "location:" + userID.String() }
