package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// Recorder is the event store entry point the consumer drains into.
type Recorder interface {
	RecordView(ctx context.Context, v domain.ViewEvent) (*domain.ViewEvent, error)
	RecordClick(ctx context.Context, c domain.ClickEvent) (*domain.ClickEvent, error)
	RecordConversion(ctx context.Context, c domain.ConversionEvent) (*domain.ConversionEvent, error)
}

// Consumer long-polls the intake queue and records each envelope. A
// message is deleted once recorded, or once the recorder has rejected it
// for good; transient failures leave it for redelivery.
type Consumer struct {
	client      SQSAPI
	queueURL    string
	recorder    Recorder
	waitSeconds int32
	backoff     time.Duration
	done        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewConsumer(client SQSAPI, queueURL string, recorder Recorder) *Consumer {
	return &Consumer{
		client:      client,
		queueURL:    queueURL,
		recorder:    recorder,
		waitSeconds: 20,
		backoff:     5 * time.Second,
		done:        make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	logger.Info("[Tracking] SQS consumer started", "queue", c.queueURL)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the in-flight batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     c.waitSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("[Tracking] SQS receive failed", "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
			continue
		}

		for _, msg := range out.Messages {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	var env Envelope
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &env); err != nil {
		logger.Warn("[Tracking] dropping malformed message", "message_id", aws.ToString(msg.MessageId), "error", err)
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	err := c.process(ctx, env)
	switch {
	case err == nil:
	case permanent(err):
		logger.Warn("[Tracking] event rejected", "kind", string(env.Kind), "error", err)
	default:
		logger.Error("[Tracking] event processing failed, leaving for redelivery", "kind", string(env.Kind), "error", err)
		return
	}
	c.deleteMessage(ctx, msg.ReceiptHandle)
}

func (c *Consumer) process(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case KindView:
		if env.View == nil {
			return domain.Invalid("view", "is required")
		}
		_, err := c.recorder.RecordView(ctx, *env.View)
		return err
	case KindClick:
		if env.Click == nil {
			return domain.Invalid("click", "is required")
		}
		_, err := c.recorder.RecordClick(ctx, *env.Click)
		return err
	case KindConversion:
		if env.Conversion == nil {
			return domain.Invalid("conversion", "is required")
		}
		_, err := c.recorder.RecordConversion(ctx, *env.Conversion)
		return err
	default:
		return domain.Invalid("kind", fmt.Sprintf("unknown event kind %q", env.Kind))
	}
}

// permanent reports whether redelivering the message could never succeed.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrDuplicateSession) ||
		errors.Is(err, domain.ErrDuplicateConversion)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		logger.Error("[Tracking] SQS delete failed", "error", err)
	}
}
