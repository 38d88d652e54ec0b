package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// Kind names the engagement event carried by an Envelope.
type Kind string

const (
	KindView       Kind = "view"
	KindClick      Kind = "click"
	KindConversion Kind = "conversion"
)

// Envelope is the queue message written by the edge intake. Exactly one
// payload is set, matching Kind.
type Envelope struct {
	Kind       Kind                    `json:"kind"`
	View       *domain.ViewEvent       `json:"view,omitempty"`
	Click      *domain.ClickEvent      `json:"click,omitempty"`
	Conversion *domain.ConversionEvent `json:"conversion,omitempty"`
	ReceivedAt time.Time               `json:"received_at"`
}

// SQSAPI is the subset of the SQS client used by the intake path.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Publisher struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

// Publish enqueues env and reports whether the queue accepted it.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(env.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to sqs: %w", env.Kind, err)
	}
	return nil
}
