package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// maxSubjectLen is the SNS limit for the Subject field.
const maxSubjectLen = 100

// PublishAPI is the subset of the SNS client used by Notifier.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier hands email notifications to an SNS topic. Subscribers own the actual delivery;
// the recipient travels as the "to" message attribute.
type Notifier struct {
	client   PublishAPI
	topicARN string
}

// NewClient creates an SNS client. When endpoint is set (LocalStack), it overrides the endpoint.
func NewClient(awsCfg aws.Config, endpoint string) *sns.Client {
	clientOpts := []func(*sns.Options){}
	if endpoint != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...)
}

func NewNotifier(client PublishAPI, topicARN string) *Notifier {
	return &Notifier{client: client, topicARN: topicARN}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"to": {DataType: aws.String("String"), StringValue: aws.String(to)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
