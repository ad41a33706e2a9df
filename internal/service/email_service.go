package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendSessionSummary(ctx context.Context, session *entity.Session, players []entity.Player) error
}

// NoopEmailService is used when summary emails are disabled.
type NoopEmailService struct{}

func (s *NoopEmailService) SendSessionSummary(ctx context.Context, session *entity.Session, players []entity.Player) error {
	log.Printf("[EmailService] noop send session summary session=%d", session.ID)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// SendSessionSummary mails the final leaderboard to the session host.
// Idempotency key is derived from the session id, so a crashed retry of
// the end-of-session hook never duplicates the email.
func (s *ResendEmailService) SendSessionSummary(ctx context.Context, session *entity.Session, players []entity.Player) error {
	if session.HostEmail == "" {
		return nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Сессия %q завершена.\n\nИтоги:\n", session.Title)
	for _, p := range players {
		if !p.IsPlaying {
			continue
		}
		fmt.Fprintf(&text, "%d. %s — %d очков (%d правильных)\n", p.Rank, p.DisplayName, p.Score, p.CorrectCount)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{session.HostEmail},
		Subject: fmt.Sprintf("Итоги сессии: %s", session.Title),
		Text:    text.String(),
	}
	options := &resend.SendEmailOptions{
		IdempotencyKey: fmt.Sprintf("session-summary-%d", session.ID),
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.client.Emails.SendWithOptions(sendCtx, params, options); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}
