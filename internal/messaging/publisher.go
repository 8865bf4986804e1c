package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"fable-server/internal/models"
)

const (
	publishMaxAttempts = 3
	publishRetryDelay  = 100 * time.Millisecond

	appID = "fable-server"

	// headerAttempts counts completed delivery attempts for a task message.
	headerAttempts = "x-attempts"
)

// TaskDispatcher hands generation jobs to the queue. Dispatch returns the job
// id it stamped on the payload; on error no job id exists and the caller must
// leave the aggregate untouched.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, payload GenerationTaskPayload) (jobID string, err error)
	Close() error
}

// EventPublisher emits domain events fire-and-forget: failures are logged by
// the caller, never propagated into the request path.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.DomainEvent) error
	Close() error
}

type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	taskQueue  string
	retryQueue string
	eventQueue string
}

var _ TaskDispatcher = (*RabbitPublisher)(nil)
var _ EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher connects to RabbitMQ and declares the work, retry and
// event queues. The retry queue dead-letters expired messages back onto the
// work queue through the default exchange; per-message TTL supplies the delay.
func NewRabbitPublisher(url, taskQueue, retryQueue, eventQueue string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	p := &RabbitPublisher{
		conn:       conn,
		channel:    channel,
		logger:     logger.Named("rabbitmq_publisher"),
		taskQueue:  taskQueue,
		retryQueue: retryQueue,
		eventQueue: eventQueue,
	}
	if err := DeclareTopology(channel, taskQueue, retryQueue, eventQueue); err != nil {
		p.Close()
		return nil, err
	}

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("task_queue", taskQueue),
		zap.String("retry_queue", retryQueue),
		zap.String("event_queue", eventQueue))
	return p, nil
}

// DeclareTopology declares the queues shared by publisher and consumer so
// either side can start first.
func DeclareTopology(channel *amqp.Channel, taskQueue, retryQueue, eventQueue string) error {
	if _, err := channel.QueueDeclare(taskQueue, true, false, false, false, amqp.Table{
		"x-queue-mode": "lazy",
	}); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", taskQueue, err)
	}
	if _, err := channel.QueueDeclare(retryQueue, true, false, false, false, amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": taskQueue,
	}); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", retryQueue, err)
	}
	if _, err := channel.QueueDeclare(eventQueue, true, false, false, false, amqp.Table{
		"x-queue-mode": "lazy",
	}); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", eventQueue, err)
	}
	return nil
}

// Dispatch stamps a fresh job id on the payload and publishes it to the work
// queue. The job id is generated here so a publish failure cannot leave a
// half-dispatched id on the aggregate.
func (p *RabbitPublisher) Dispatch(ctx context.Context, payload GenerationTaskPayload) (string, error) {
	payload.JobID = uuid.NewString()
	if payload.TaskType == "" {
		payload.TaskType = TaskTypeStoryGeneration
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	if err := p.publishMessage(ctx, p.taskQueue, body, amqp.Table{headerAttempts: int32(0)}, 0); err != nil {
		return "", err
	}

	p.logger.Info("generation task dispatched",
		zap.String("job_id", payload.JobID),
		zap.String("story_id", payload.StoryID))
	return payload.JobID, nil
}

// PublishEvent serializes a domain event into an envelope and publishes it to
// the event queue.
func (p *RabbitPublisher) PublishEvent(ctx context.Context, event models.DomainEvent) error {
	envelope := eventEnvelope{
		Name:       event.EventName(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Payload:    event,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event '%s': %w", event.EventName(), err)
	}
	return p.publishMessage(ctx, p.eventQueue, body, nil, 0)
}

func (p *RabbitPublisher) publishMessage(ctx context.Context, queue string, body []byte, headers amqp.Table, ttl time.Duration) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		AppId:        appID,
		Headers:      headers,
		Body:         body,
	}
	if ttl > 0 {
		msg.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
	}

	var lastErr error
	for attempt := 1; attempt <= publishMaxAttempts; attempt++ {
		lastErr = p.channel.PublishWithContext(ctx, "", queue, false, false, msg)
		if lastErr == nil {
			return nil
		}
		p.logger.Warn("publish attempt failed",
			zap.String("queue", queue),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(publishRetryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("failed to publish to queue '%s' after %d attempts: %w", queue, publishMaxAttempts, lastErr)
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
