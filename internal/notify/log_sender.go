package notify

import (
	"context"
	"log"
)

// LogSender writes messages to the process log. Default provider for
// development and tests.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Printf("notify: email to=%s subject=%q", to, subject)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, phone, message string) error {
	log.Printf("notify: sms to=%s", phone)
	return nil
}
