package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/models"
)

// SOSQueue is the Redis list the worker pool consumes.
const SOSQueue = "queue:sos-suggestions"

const recentSOSLimit = 20

type sosRepository interface {
	Create(ctx context.Context, e *models.SOSEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SOSEvent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.SOSEvent, error)
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// SOSJob is the queue payload for one suggestion request.
type SOSJob struct {
	EventID uuid.UUID `json:"event_id"`
	UserID  uuid.UUID `json:"user_id"`
	Attempt int       `json:"attempt"`
}

// jobQueue is satisfied by *redis.Client.
type jobQueue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

type updatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

type SOSService struct {
	repo      sosRepository
	locations *LocationService
	queue     jobQueue
	publisher updatePublisher
}

func NewSOSService(repo sosRepository, locations *LocationService, queue jobQueue, publisher updatePublisher) *SOSService {
	return &SOSService{repo: repo, locations: locations, queue: queue, publisher: publisher}
}

// Trigger records an SOS event at the given (or last known) position and
// queues suggestion generation for it.
func (s *SOSService) Trigger(ctx context.Context, userID uuid.UUID, req models.LocationRequest) (*models.SOSEvent, error) {
	pos, err := s.locations.Resolve(ctx, userID, req)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &ValidationError{Fields: map[string]string{"location": "Your location is not available. Cannot get suggestions."}}
		}
		return nil, err
	}

	event := &models.SOSEvent{
		UserID:    userID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Status:    models.SOSStatusPending,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record SOS event: %w", err)
	}

	if err := s.Enqueue(ctx, SOSJob{EventID: event.ID, UserID: userID}); err != nil {
		s.abandon(ctx, event, "Could not schedule safety suggestions.")
		return nil, err
	}

	s.publisher.PublishUpdate(ctx, userID, models.WSMessage{
		Type:    models.EventSOSCreated,
		Payload: models.SOSUpdate{EventID: event.ID, Status: event.Status},
	})

	return event, nil
}

// abandon marks an event no worker will ever see as failed, so it does not
// linger as pending.
func (s *SOSService) abandon(ctx context.Context, event *models.SOSEvent, message string) {
	if err := s.repo.Fail(ctx, event.ID, message); err != nil {
		logger.Errorf("SOS event %s: failed to mark as failed: %v", event.ID, err)
	}
	event.Status = models.SOSStatusFailed
	event.ErrorMessage = &message
	s.publisher.PublishUpdate(ctx, event.UserID, models.WSMessage{
		Type: models.EventSOSFailed,
		Payload: models.SOSUpdate{
			EventID: event.ID,
			Status:  models.SOSStatusFailed,
			Error:   message,
		},
	})
}

func (s *SOSService) Enqueue(ctx context.Context, job SOSJob) error {
	data, _ := json.Marshal(job)
	if err := s.queue.RPush(ctx, SOSQueue, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to queue SOS job: %w", err)
	}
	return nil
}

// Get returns the event if it belongs to userID.
func (s *SOSService) Get(ctx context.Context, userID, eventID uuid.UUID) (*models.SOSEvent, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "SOS event not found"}
		}
		return nil, err
	}
	if event.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return event, nil
}

func (s *SOSService) Recent(ctx context.Context, userID uuid.UUID) ([]*models.SOSEvent, error) {
	return s.repo.ListByUser(ctx, userID, recentSOSLimit)
}

// EmergencyContacts are the Indian national emergency numbers.
func EmergencyContacts() []models.EmergencyContact {
	return []models.EmergencyContact{
		{Name: "Police", Number: "100", Kind: "police"},
		{Name: "Ambulance", Number: "102", Kind: "medical"},
		{Name: "National Emergency Helpline", Number: "112", Kind: "emergency"},
	}
}
