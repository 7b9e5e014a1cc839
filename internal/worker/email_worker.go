package worker

// email_worker.go
// Sends the close-of-shift discrepancy report when a session closes with a
// non-normal classification.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type EmailJob struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

type Sender interface {
	Send(to []string, subject, text, html string) error
}

type EmailWorker struct {
	mailer Sender
}

func NewEmailWorker(mailer Sender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job EmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if len(job.To) == 0 {
		log.Warn().Str("subject", job.Subject).Msg("email_worker: no recipients, skipping")
		return nil
	}

	err := withRetry(ctx, maxAttempts, func(int) error {
		return w.mailer.Send(job.To, job.Subject, job.Text, job.HTML)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", strings.Join(job.To, ","), err)
	}
	log.Info().Strs("to", job.To).Str("subject", job.Subject).Msg("email_worker: sent")
	return nil
}
