package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bookmyfaculty/internal/domain"
	"bookmyfaculty/internal/events"
	"bookmyfaculty/internal/metrics"
	"bookmyfaculty/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotifyWorker is the delivery half of the change notifier. It subscribes
// to committed transitions, writes the in-app notification feed, and fans
// tasks out to external channels (Telegram, Sheets) with retry and a dead
// letter queue. Nothing here can fail a booking: every error ends in a
// log line and a counter, not a propagated error.
type NotifyWorker struct {
	store         domain.Store
	redis         *redis.Client
	channels      map[string]domain.Channel
	channelsMu    sync.RWMutex
	retryPolicy   RetryPolicy
	queue         chan models.DeliveryTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults. redisClient may be
// nil; the worker then runs on the in-memory queue plus DB polling alone.
func NewNotifyWorker(store domain.Store, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	var workerLogger zerolog.Logger
	if logger != nil {
		workerLogger = logger.With().Str("component", "notify_worker").Logger()
	}

	return &NotifyWorker{
		store:         store,
		redis:         redisClient,
		channels:      make(map[string]domain.Channel),
		retryPolicy:   retry,
		queue:         make(chan models.DeliveryTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        workerLogger,
	}
}

// RegisterChannel adds an external delivery target. Safe to call while
// the worker is running; the channel receives subsequent tasks.
func (w *NotifyWorker) RegisterChannel(ch domain.Channel) {
	w.channelsMu.Lock()
	defer w.channelsMu.Unlock()
	w.channels[ch.Name()] = ch
}

func (w *NotifyWorker) channelNames() []string {
	w.channelsMu.RLock()
	defer w.channelsMu.RUnlock()
	names := make([]string, 0, len(w.channels))
	for name := range w.channels {
		names = append(names, name)
	}
	return names
}

func (w *NotifyWorker) channel(name string) (domain.Channel, bool) {
	w.channelsMu.RLock()
	defer w.channelsMu.RUnlock()
	ch, ok := w.channels[name]
	return ch, ok
}

// SubscribeTo wires the worker to the bus carrying committed transitions.
func (w *NotifyWorker) SubscribeTo(bus *events.Bus) {
	bus.Subscribe(events.EventReservationConfirmed, w.handleReservationEvent)
	bus.Subscribe(events.EventReservationCancelled, w.handleReservationEvent)
}

func (w *NotifyWorker) handleReservationEvent(event *events.Event) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		w.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.writeFeedEntries(ctx, event.Type, payload)

	for _, name := range w.channelNames() {
		if err := w.enqueue(ctx, name, event.Type, payload); err != nil {
			w.logger.Error().Err(err).Str("channel", name).
				Int64("reservation_id", payload.ReservationID).Msg("enqueue delivery task")
		}
	}

	return nil
}

// writeFeedEntries records the committed transition in both parties'
// in-app feeds. The feed is advisory; a failed insert is logged and
// dropped.
func (w *NotifyWorker) writeFeedEntries(ctx context.Context, eventType string, payload events.ReservationEventPayload) {
	when := payload.StartTime.Format("Mon, 02 Jan 2006 15:04")

	var kind, studentTitle, studentMsg, providerTitle, providerMsg string
	switch eventType {
	case events.EventReservationConfirmed:
		kind = models.NotificationKindBooking
		studentTitle = "Appointment Confirmed!"
		studentMsg = fmt.Sprintf("Your consultation on %s is confirmed.", when)
		providerTitle = "New Booking"
		providerMsg = fmt.Sprintf("A student booked your %s slot.", when)
	case events.EventReservationCancelled:
		kind = models.NotificationKindCancellation
		studentTitle = "Appointment Cancelled"
		studentMsg = fmt.Sprintf("Your consultation on %s was cancelled.", when)
		providerTitle = "Booking Cancelled"
		providerMsg = fmt.Sprintf("The booking for your %s slot was cancelled; the slot is open again.", when)
	default:
		return
	}

	entries := []models.Notification{
		{UserID: payload.StudentID, Title: studentTitle, Message: studentMsg, Kind: kind, ReservationID: payload.ReservationID},
		{UserID: payload.ProviderID, Title: providerTitle, Message: providerMsg, Kind: kind, ReservationID: payload.ReservationID},
	}

	for i := range entries {
		if err := w.store.CreateNotification(ctx, &entries[i]); err != nil {
			w.logger.Error().Err(err).Int64("user_id", entries[i].UserID).Msg("write notification feed entry")
		}
	}
}

// enqueue persists the task first, then schedules it via redis with the
// in-memory queue as fallback. The DB row makes delivery at-least-once
// across crashes; the polling loop picks up anything both queues lost.
func (w *NotifyWorker) enqueue(ctx context.Context, channel, eventType string, payload events.ReservationEventPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.DeliveryTask{
		Channel:       channel,
		EventType:     eventType,
		ReservationID: payload.ReservationID,
		Payload:       string(raw),
	}

	if err := w.store.CreateDeliveryTask(ctx, &task); err != nil {
		return fmt.Errorf("persist delivery task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}

	return nil
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.DeliveryTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

// Run consumes tasks until ctx is cancelled: the in-memory queue first,
// then the redis queue, then a DB poll for stragglers.
func (w *NotifyWorker) Run(ctx context.Context) {
	w.logger.Info().Int("channels", len(w.channelNames())).Msg("notify worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("notify worker stopped")
			return
		case task := <-w.queue:
			w.process(ctx, task)
		case <-ticker.C:
			w.drainRedis(ctx)
			w.pollPending(ctx)
		}
	}
}

func (w *NotifyWorker) drainRedis(ctx context.Context) {
	if w.redis == nil {
		return
	}

	for i := 0; i < w.batchSize; i++ {
		data, err := w.redis.RPop(ctx, w.redisQueueKey).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			w.logger.Warn().Err(err).Msg("redis pop failed")
			return
		}

		var task models.DeliveryTask
		if err := json.Unmarshal([]byte(data), &task); err != nil {
			w.logger.Error().Err(err).Msg("decode queued task")
			continue
		}
		w.process(ctx, task)
	}
}

func (w *NotifyWorker) pollPending(ctx context.Context) {
	tasks, err := w.store.ListPendingDeliveryTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("poll pending delivery tasks")
		return
	}

	for _, task := range tasks {
		// Only pick up tasks old enough that the queue path has clearly
		// lost them; fresh tasks are still in flight.
		if time.Since(task.CreatedAt) < w.pollInterval {
			continue
		}
		w.process(ctx, task)
	}
}

// process delivers one task with backoff. Duplicate delivery is possible
// when a task sits in both a queue and the DB poll window: acceptable
// under the at-least-once contract.
func (w *NotifyWorker) process(ctx context.Context, task models.DeliveryTask) {
	ch, ok := w.channel(task.Channel)
	if !ok {
		w.logger.Error().Str("channel", task.Channel).Int64("task_id", task.ID).Msg("unknown delivery channel")
		w.finish(ctx, task, models.TaskStatusFailed, task.Attempts)
		return
	}

	attempts := task.Attempts
	for attempts < w.retryPolicy.MaxAttempts {
		attempts++

		err := ch.Deliver(ctx, task)
		if err == nil {
			w.finish(ctx, task, models.TaskStatusDone, attempts)
			return
		}

		metrics.IncDeliveryFailure(task.Channel)
		w.logger.Warn().Err(err).Str("channel", task.Channel).
			Int64("task_id", task.ID).Int("attempt", attempts).Msg("delivery attempt failed")

		select {
		case <-ctx.Done():
			// Leave the task pending; the poll loop retries after restart.
			_ = w.store.UpdateDeliveryTask(context.Background(), task.ID, models.TaskStatusPending, attempts)
			return
		case <-time.After(w.retryPolicy.NextDelay(attempts)):
		}
	}

	w.deadLetter(ctx, task)
	w.finish(ctx, task, models.TaskStatusFailed, attempts)
}

func (w *NotifyWorker) finish(ctx context.Context, task models.DeliveryTask, status string, attempts int) {
	if err := w.store.UpdateDeliveryTask(ctx, task.ID, status, attempts); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("update delivery task")
	}
}

func (w *NotifyWorker) deadLetter(ctx context.Context, task models.DeliveryTask) {
	w.logger.Error().Str("channel", task.Channel).Int64("task_id", task.ID).
		Int64("reservation_id", task.ReservationID).Msg("delivery exhausted retries, dead-lettering")

	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Warn().Err(err).Msg("dead letter push failed")
	}
}
