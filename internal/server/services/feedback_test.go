package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/logging"
)

type recordingAlerter struct {
	events   []string
	messages []string
	err      error
}

func (a *recordingAlerter) Alert(_ context.Context, event, message string) error {
	a.events = append(a.events, event)
	a.messages = append(a.messages, message)
	return a.err
}

func TestFeedback_Submit(t *testing.T) {
	a := &recordingAlerter{}
	s := NewFeedbackService(a, logging.Nop())

	require.NoError(t, s.Submit(context.Background(), "  the unlock picker is great  ", ""))
	require.NoError(t, s.Submit(context.Background(), "please add more presets", "me@example.com"))

	assert.Equal(t, []string{"feedback", "feedback"}, a.events)
	assert.Equal(t, "the unlock picker is great\n\nContact: not provided", a.messages[0])
	assert.Contains(t, a.messages[1], "Contact: me@example.com")
}

func TestFeedback_Validation(t *testing.T) {
	a := &recordingAlerter{}
	s := NewFeedbackService(a, logging.Nop())

	tests := []struct {
		name    string
		message string
		email   string
	}{
		{"too short", "short", ""},
		{"blank", "           ", ""},
		{"too long", strings.Repeat("x", MaxFeedbackLength+1), ""},
		{"bad email", "long enough message", "not-an-email"},
		{"display name email", "long enough message", "Me <me@example.com>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Submit(context.Background(), tt.message, tt.email), common.ErrInvalidRequest)
		})
	}
	assert.Empty(t, a.events)
}

func TestFeedback_DeliveryIsBestEffort(t *testing.T) {
	a := &recordingAlerter{err: errors.New("webhook down")}
	s := NewFeedbackService(a, logging.Nop())

	assert.NoError(t, s.Submit(context.Background(), "still accepted when the webhook fails", ""))
	assert.Len(t, a.events, 1)
	assert.NoError(t, NewFeedbackService(nil, logging.Nop()).Submit(context.Background(), "no alerter configured", ""))
}
