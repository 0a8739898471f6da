package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/timevault/internal/client/api"
	"github.com/dmitrijs2005/timevault/internal/client/links"
	"github.com/dmitrijs2005/timevault/internal/common"
)

func TestShortDurationAndWhen(t *testing.T) {
	assert.Equal(t, "5m", shortDuration(5*time.Minute))
	assert.Equal(t, "2h30m", shortDuration(150*time.Minute))
	assert.Equal(t, "1d2h", shortDuration(26*time.Hour))

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, strings.HasSuffix(when(now.Add(90*time.Minute), now), "(in 1h30m)"))
	assert.True(t, strings.HasSuffix(when(now.Add(-48*time.Hour), now), "(2d0h ago)"))
	assert.True(t, strings.HasSuffix(when(now.Add(10*time.Second), now), "(now)"))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "10.0 MiB", humanBytes(10<<20))
}

func TestDescribe(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	unlock := now.Add(3 * time.Hour)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"locked with time", &api.Error{Code: "not_yet_unlocked", UnlockAt: &unlock}, "still locked; it unlocks"},
		{"locked", common.ErrNotYetUnlocked, "secret is still locked"},
		{"retrieved", &api.Error{Code: "already_retrieved"}, "already viewed"},
		{"expired", common.ErrExpired, "expired"},
		{"already unlocked", common.ErrAlreadyUnlocked, "can no longer be edited"},
		{"not found", &api.Error{Code: "not_found"}, "secret not found"},
		{"bad key", fmt.Errorf("decrypt: %w", common.ErrAuthenticationFailure), "key in the link is wrong"},
		{"link", fmt.Errorf("%w: missing key", links.ErrMalformedLink), "missing key"},
		{"internal", &api.Error{StatusCode: 500, Message: "boom", CorrelationID: "c-1"}, "boom (correlation id c-1)"},
		{"plain", errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describe(tt.err, now), tt.want)
		})
	}
}

func TestScheduleFlags(t *testing.T) {
	s, err := scheduleFlags{unlock: "1d", expiry: "7d"}.schedule()
	require.NoError(t, err)
	assert.Equal(t, "1d", s.UnlockPreset)
	assert.Nil(t, s.UnlockAt)
	assert.Equal(t, "7d", s.ExpiryPreset)

	s, err = scheduleFlags{unlock: "1d", unlockAt: "2030-01-01T00:00:00Z", expiry: "7d", expiresAt: "2030-02-01 10:30"}.schedule()
	require.NoError(t, err)
	assert.Empty(t, s.UnlockPreset)
	require.NotNil(t, s.UnlockAt)
	assert.True(t, s.UnlockAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, s.ExpiryPreset)
	require.NotNil(t, s.ExpiresAt)
	assert.Equal(t, 10, s.ExpiresAt.Hour())

	_, err = scheduleFlags{unlockAt: "tomorrow"}.schedule()
	assert.ErrorContains(t, err, "--unlock-at")
}

func TestPromptMultiline(t *testing.T) {
	var w bytes.Buffer
	got, err := promptMultiline(bufio.NewReader(strings.NewReader("first\nsecond\n\nignored\n")), &w, "Message")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got)
	assert.Contains(t, w.String(), "empty line to finish")

	got, err = promptMultiline(bufio.NewReader(strings.NewReader("no newline")), &w, "Message")
	require.NoError(t, err)
	assert.Equal(t, "no newline", got)
}

func TestReadMessage(t *testing.T) {
	a := NewApp(nil, WithIO(strings.NewReader("from stdin\r\n"), &bytes.Buffer{}, &bytes.Buffer{}))

	got, err := a.readMessage("flag", true, false)
	require.NoError(t, err)
	assert.Equal(t, "flag", got)

	got, err = a.readMessage("", false, false)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)
}

func TestReadAttachments(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.json")
	p2 := filepath.Join(dir, "blob.unknownext")
	require.NoError(t, os.WriteFile(p1, []byte("aa"), 0o600))
	require.NoError(t, os.WriteFile(p2, []byte{0, 1}, 0o600))

	atts, err := readAttachments([]string{p1, p2})
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, "a.json", atts[0].Name)
	assert.Equal(t, "application/json", atts[0].Type)
	assert.Equal(t, "application/octet-stream", atts[1].Type)

	_, err = readAttachments([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestField(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"s": "x", "n": float64(42), "b": true})
	require.NoError(t, err)
	assert.Equal(t, "x", field(s, "s"))
	assert.Equal(t, "42", field(s, "n"))
	assert.Equal(t, "true", field(s, "b"))
	assert.Equal(t, "", field(s, "missing"))
}
