// Package notify abstracts the delivery providers. The services only see
// these two interfaces; SMTP/SNS specifics stay out of the domain code.
package notify

import "context"

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}
