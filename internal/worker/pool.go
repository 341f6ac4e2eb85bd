package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/models"
	"emitra-backend/internal/services"
)

const (
	defaultMaxRetries = 2
	jobTimeout        = 2 * time.Minute
	popTimeout        = 5 * time.Second
)

type suggestionGenerator interface {
	GenerateSafetySuggestions(ctx context.Context, locationDescription string) (string, error)
}

type sosEventRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SOSEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	IncrementRetry(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, suggestions string) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type updatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

type requeuer interface {
	Enqueue(ctx context.Context, job services.SOSJob) error
}

// Pool drains the SOS queue and fills in safety suggestions for each event.
type Pool struct {
	redis       *redis.Client
	gemini      suggestionGenerator
	repo        sosEventRepo
	publisher   updatePublisher
	requeue     requeuer
	workerCount int
	maxRetries  int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	gemini suggestionGenerator,
	repo sosEventRepo,
	publisher updatePublisher,
	requeue requeuer,
	workerCount int,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		gemini:      gemini,
		repo:        repo,
		publisher:   publisher,
		requeue:     requeue,
		workerCount: workerCount,
		maxRetries:  defaultMaxRetries,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Infof("Started %d SOS worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			logger.Infof("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, services.SOSQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				logger.Warnf("Worker %d: queue read failed: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job services.SOSJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logger.Errorf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("sos_lock:%s:%d", job.EventID.String(), job.Attempt)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", jobTimeout).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		logger.Infof("Worker %d: processing SOS event %s", id, job.EventID)
		p.process(ctx, job)
		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(parent context.Context, job services.SOSJob) {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	event, err := p.repo.GetByID(ctx, job.EventID)
	if err != nil {
		logger.Errorf("SOS event %s could not be loaded: %v", job.EventID, err)
		return
	}
	if event.Status == models.SOSStatusCompleted || event.Status == models.SOSStatusFailed {
		return
	}

	p.repo.UpdateStatus(ctx, event.ID, models.SOSStatusProcessing)

	suggestions, err := p.gemini.GenerateSafetySuggestions(ctx, event.Position().Describe())
	if err != nil {
		p.handleFailure(ctx, job, event, err)
		return
	}

	if err := p.repo.Complete(ctx, event.ID, suggestions); err != nil {
		logger.Errorf("SOS event %s: failed to store suggestions: %v", event.ID, err)
		return
	}

	p.publisher.PublishUpdate(ctx, event.UserID, models.WSMessage{
		Type: models.EventSOSCompleted,
		Payload: models.SOSUpdate{
			EventID:     event.ID,
			Status:      models.SOSStatusCompleted,
			Suggestions: suggestions,
		},
	})
}

func (p *Pool) handleFailure(ctx context.Context, job services.SOSJob, event *models.SOSEvent, cause error) {
	logger.Warnf("SOS event %s: suggestion generation failed (attempt %d): %v", event.ID, event.RetryCount+1, cause)

	if event.RetryCount < p.maxRetries {
		if err := p.repo.IncrementRetry(ctx, event.ID); err == nil {
			if err := p.requeue.Enqueue(ctx, services.SOSJob{EventID: event.ID, UserID: event.UserID, Attempt: job.Attempt + 1}); err == nil {
				return
			}
		}
	}

	message := cause.Error()
	var aiErr *services.AIError
	if errors.As(cause, &aiErr) {
		message = aiErr.Message
	}

	p.repo.Fail(ctx, event.ID, message)
	p.publisher.PublishUpdate(ctx, event.UserID, models.WSMessage{
		Type: models.EventSOSFailed,
		Payload: models.SOSUpdate{
			EventID: event.ID,
			Status:  models.SOSStatusFailed,
			Error:   message,
		},
	})
}
