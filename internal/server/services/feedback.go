package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/alerts"
)

const (
	MinFeedbackLength = 10
	MaxFeedbackLength = 2000
)

// FeedbackService forwards user feedback to operators. Nothing is stored.
type FeedbackService struct {
	alerter alerts.Alerter
	log     logging.Logger
}

func NewFeedbackService(alerter alerts.Alerter, log logging.Logger) *FeedbackService {
	if alerter == nil {
		alerter = alerts.Nop()
	}
	return &FeedbackService{alerter: alerter, log: log}
}

// Submit validates and forwards one message. Delivery is best effort: a
// failing webhook is logged and the submission still succeeds.
func (s *FeedbackService) Submit(ctx context.Context, message, email string) error {
	message = strings.TrimSpace(message)
	email = strings.TrimSpace(email)

	n := utf8.RuneCountInString(message)
	if n < MinFeedbackLength || n > MaxFeedbackLength {
		return fmt.Errorf("%w: message must be %d to %d characters", common.ErrInvalidRequest, MinFeedbackLength, MaxFeedbackLength)
	}
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return fmt.Errorf("%w: invalid email address", common.ErrInvalidRequest)
		}
	}

	contact := email
	if contact == "" {
		contact = "not provided"
	}
	if err := s.alerter.Alert(ctx, "feedback", fmt.Sprintf("%s\n\nContact: %s", message, contact)); err != nil {
		s.log.Error(ctx, "feedback notification failed", "error", err)
	}

	s.log.Info(ctx, "feedback submitted", "has_email", email != "", "message_length", n)
	return nil
}
