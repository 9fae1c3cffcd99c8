package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"placement-core/internal/models"
)

// SNSService is the subset of the SNS client the sink uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes each event as JSON to one topic. The event kind and user id
// travel as message attributes so subscribers can filter.
type SNSSink struct {
	client   SNSService
	topicARN string
	timeout  time.Duration
}

func NewSNSSink(client SNSService, topicARN string, timeout time.Duration) *SNSSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SNSSink{client: client, topicARN: topicARN, timeout: timeout}
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Publish(ctx context.Context, ev models.NotificationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Kind)),
			},
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.UserID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", ev.Kind, err)
	}
	return nil
}
