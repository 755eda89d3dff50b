package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/events"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Ledger applies one booking change to the operations sheet.
type Ledger interface {
	Apply(ctx context.Context, taskType string, booking *models.Booking) error
}

// TaskStore is the durable outbox behind the queue.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type Option func(*SheetsWorker)

// WithBookingSource makes the worker write the latest stored booking
// instead of the snapshot taken at enqueue time.
func WithBookingSource(store domain.BookingStore) Option {
	return func(w *SheetsWorker) { w.source = store }
}

// WithQueueKeys overrides the redis list names.
func WithQueueKeys(queue, deadLetter string) Option {
	return func(w *SheetsWorker) {
		if queue != "" {
			w.redisQueueKey = queue
		}
		if deadLetter != "" {
			w.deadLetterKey = deadLetter
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *SheetsWorker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// SheetsWorker persists ledger tasks to the outbox, hands them over through
// redis (or an in-process channel) and applies them with retries. A worker
// built without a Ledger only produces tasks.
type SheetsWorker struct {
	store         TaskStore
	ledger        Ledger
	source        domain.BookingStore
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
}

func NewSheetsWorker(store TaskStore, ledger Ledger, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger, opts ...Option) *SheetsWorker {
	w := &SheetsWorker{
		store:         store,
		ledger:        ledger,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.SyncQueueSize),
		redisQueueKey: "sync:bookings",
		deadLetterKey: "sync:bookings:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        zerolog.Nop(),
	}
	if logger != nil {
		w.logger = logger.With().Str("component", "sheets_worker").Logger()
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnqueueTask persists the task and schedules it.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if booking == nil || booking.ID == "" {
		return errors.New("booking id is required")
	}

	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		BookingID: booking.ID,
		Payload:   string(payload),
		Status:    models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}
	metrics.IncSyncTask("enqueued")

	if w.redis != nil {
		err := w.pushList(ctx, w.redisQueueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back")
	}

	// a producer-only worker leaves the task to the outbox poll
	if w.ledger == nil {
		return nil
	}
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the consume loop until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	if w.ledger == nil {
		w.logger.Warn().Msg("no ledger configured, worker not started")
		return
	}
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		n, err := w.pollOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		if n == 0 || err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// pollOnce processes a batch of due outbox tasks.
func (w *SheetsWorker) pollOnce(ctx context.Context) (int, error) {
	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP failed")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	booking, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}
	booking = w.latest(ctx, task.TaskType, booking)

	if err := w.ledger.Apply(ctx, task.TaskType, booking); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
	metrics.IncSyncTask("completed")
}

// latest swaps the snapshot for the stored booking when a source is set.
func (w *SheetsWorker) latest(ctx context.Context, taskType string, snapshot *models.Booking) *models.Booking {
	if w.source == nil || taskType != models.SyncTaskUpsert {
		return snapshot
	}
	current, err := w.source.GetBooking(ctx, snapshot.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			w.logger.Warn().Err(err).Str("booking_id", snapshot.ID).Msg("load latest booking")
		}
		return snapshot
	}
	return current
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().UTC().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("sync task will be retried")
	metrics.IncSyncTask("retry")
}

func (w *SheetsWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("booking_id", task.BookingID).Msg("sync task moved to dead letter")
	metrics.IncSyncTask("failed")
	if w.redis != nil {
		if err := w.pushList(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
		}
	}
}

func (w *SheetsWorker) decodePayload(raw string) (*models.Booking, error) {
	var b models.Booking
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, err
	}
	if b.ID == "" {
		return nil, errors.New("booking id missing")
	}
	return &b, nil
}

func (w *SheetsWorker) pushList(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

// SubscribeBookingEvents enqueues a ledger upsert for every booking event.
func SubscribeBookingEvents(bus *events.EventBus, sync domain.SyncWorker) {
	bus.Subscribe(func(e *events.Event) error {
		p, err := e.DecodeBooking()
		if err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		if p.Booking == nil {
			return nil
		}
		return sync.EnqueueTask(context.Background(), models.SyncTaskUpsert, p.Booking)
	}, events.BookingEvents...)
}
