package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSSender delivers SMS through Amazon SNS.
type SNSSender struct {
	client *sns.Client
}

func NewSNSSender(ctx context.Context, region string) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSSender{client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNSSender) SendSMS(ctx context.Context, phone, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
	})
	return err
}
