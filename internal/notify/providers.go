package notify

import (
	"context"
	"fmt"

	"github.com/taskerin/taskerin-backend/internal/config"
)

// Build picks the delivery providers from config.
func Build(ctx context.Context, cfg config.Config) (EmailSender, SMSSender, error) {
	var email EmailSender
	var sms SMSSender

	switch cfg.EmailProvider {
	case "log":
		email = NewLogSender()
	case "ses":
		s, err := NewSESSender(ctx, cfg.AWSRegion, cfg.EmailFrom)
		if err != nil {
			return nil, nil, err
		}
		email = s
	default:
		return nil, nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}

	switch cfg.SMSProvider {
	case "log":
		sms = NewLogSender()
	case "sns":
		s, err := NewSNSSender(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		sms = s
	default:
		return nil, nil, fmt.Errorf("unknown sms provider %q", cfg.SMSProvider)
	}

	return email, sms, nil
}
