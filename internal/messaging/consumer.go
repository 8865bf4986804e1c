package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskHandler processes a single generation task. Handle returning a
// *PermanentError (or the retry budget running out) moves the job to
// HandleFailure; any other error schedules a redelivery.
type TaskHandler interface {
	Handle(ctx context.Context, payload GenerationTaskPayload) error
	HandleFailure(ctx context.Context, payload GenerationTaskPayload, reason string)
}

// JobInbox tracks completed job ids so redelivered messages are acknowledged
// without re-running side effects.
type JobInbox interface {
	IsDone(ctx context.Context, jobID string) (bool, error)
	MarkDone(ctx context.Context, jobID string) error
}

// RescueFunc is invoked when a job fails terminally, after state has been
// recorded. It exists for observability hooks; errors are not expected.
type RescueFunc func(payload GenerationTaskPayload, reason string)

// TaskConsumer pulls generation tasks from the work queue one at a time and
// drives them through the retry schedule.
type TaskConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	taskQueue  string
	retryQueue string
	policy     RetryPolicy
	handler    TaskHandler
	inbox      JobInbox
	rescue     RescueFunc

	wg   sync.WaitGroup
	done chan struct{}
}

// NewTaskConsumer connects, declares the queue topology and prepares a
// consumer with prefetch 1: a story generation occupies the worker fully.
func NewTaskConsumer(
	url, taskQueue, retryQueue, eventQueue string,
	policy RetryPolicy,
	handler TaskHandler,
	inbox JobInbox,
	rescue RescueFunc,
	logger *zap.Logger,
) (*TaskConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := DeclareTopology(channel, taskQueue, retryQueue, eventQueue); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	return &TaskConsumer{
		conn:       conn,
		channel:    channel,
		logger:     logger.Named("task_consumer"),
		taskQueue:  taskQueue,
		retryQueue: retryQueue,
		policy:     policy,
		handler:    handler,
		inbox:      inbox,
		rescue:     rescue,
		done:       make(chan struct{}),
	}, nil
}

// Start begins consuming until ctx is cancelled.
func (c *TaskConsumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.taskQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer on '%s': %w", c.taskQueue, err)
	}

	c.logger.Info("consumer started", zap.String("queue", c.taskQueue))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("delivery channel closed")
					return
				}
				c.process(ctx, d)
			}
		}
	}()
	return nil
}

func (c *TaskConsumer) process(ctx context.Context, d amqp.Delivery) {
	var payload GenerationTaskPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		c.logger.Error("dropping malformed task message", zap.Error(err))
		d.Ack(false)
		return
	}

	log := c.logger.With(
		zap.String("job_id", payload.JobID),
		zap.String("story_id", payload.StoryID))

	done, err := c.inbox.IsDone(ctx, payload.JobID)
	if err != nil {
		log.Warn("job inbox lookup failed, proceeding without dedup", zap.Error(err))
	} else if done {
		log.Info("job already completed, acknowledging duplicate delivery")
		d.Ack(false)
		return
	}

	attempts := deliveryAttempts(d) + 1
	log.Info("processing generation task", zap.Int("attempt", attempts))

	handleErr := c.handler.Handle(ctx, payload)
	if handleErr == nil {
		if err := c.inbox.MarkDone(ctx, payload.JobID); err != nil {
			log.Warn("failed to record job completion in inbox", zap.Error(err))
		}
		d.Ack(false)
		log.Info("generation task completed", zap.Int("attempt", attempts))
		return
	}

	if IsPermanent(handleErr) || !c.policy.ShouldRetry(attempts) {
		reason := handleErr.Error()
		log.Error("generation task failed terminally",
			zap.Int("attempt", attempts),
			zap.Bool("permanent", IsPermanent(handleErr)),
			zap.Error(handleErr))
		c.handler.HandleFailure(ctx, payload, reason)
		if c.rescue != nil {
			c.rescue(payload, reason)
		}
		d.Ack(false)
		return
	}

	delay := c.policy.Delay(attempts)
	log.Warn("generation task failed, scheduling retry",
		zap.Int("attempt", attempts),
		zap.Duration("delay", delay),
		zap.Error(handleErr))
	if err := c.requeue(ctx, d.Body, attempts, delay); err != nil {
		log.Error("failed to schedule retry, returning message to queue", zap.Error(err))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// requeue places the raw message on the retry queue; expiry dead-letters it
// back onto the work queue.
func (c *TaskConsumer) requeue(ctx context.Context, body []byte, attempts int, delay time.Duration) error {
	return c.channel.PublishWithContext(ctx, "", c.retryQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		AppId:        appID,
		Headers:      amqp.Table{headerAttempts: int32(attempts)},
		Expiration:   fmt.Sprintf("%d", delay.Milliseconds()),
		Body:         body,
	})
}

// deliveryAttempts reads the completed-attempt counter stamped on retried
// messages. First deliveries carry no header.
func deliveryAttempts(d amqp.Delivery) int {
	raw, ok := d.Headers[headerAttempts]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Stop drains the worker goroutine and closes the connection.
func (c *TaskConsumer) Stop() error {
	close(c.done)
	c.wg.Wait()
	var firstErr error
	if err := c.channel.Close(); err != nil {
		firstErr = err
	}
	if err := c.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
