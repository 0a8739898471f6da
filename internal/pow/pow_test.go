package pow

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
)

var (
	testNonce = strings.Repeat("ab", 32)
	testHash  = strings.Repeat("0f", 32)
)

func TestPreimage(t *testing.T) {
	assert.Equal(t, "n"+"00000000000000ff"+"h", Preimage("n", 255, "h"))
	assert.Equal(t, "n"+"ffffffffffffffff"+"h", Preimage("n", ^uint64(0), "h"))
	assert.Equal(t, sha256.Sum256([]byte(Preimage(testNonce, 7, testHash))), Hash(testNonce, 7, testHash))
}

func TestPutHex16_MatchesSprintf(t *testing.T) {
	buf := make([]byte, 16)
	for _, v := range []uint64{0, 1, 0xabc, 1 << 32, ^uint64(0)} {
		putHex16(buf, v)
		assert.Equal(t, Preimage("", v, ""), string(buf))
	}
}

func TestLeadingZeroBits(t *testing.T) {
	tests := []struct {
		in   []byte
		want int
	}{
		{[]byte{0x80}, 0},
		{[]byte{0x01}, 7},
		{[]byte{0x00, 0x40}, 9},
		{[]byte{0x00, 0x00}, 16},
		{[]byte{0x00, 0x00, 0x0f, 0xff}, 20},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LeadingZeroBits(tt.in), "%x", tt.in)
	}

	assert.True(t, Meets([]byte{0x0f}, 4))
	assert.False(t, Meets([]byte{0x0f}, 5))
	assert.True(t, Meets([]byte{0xff}, 0))
}

func TestDifficulty(t *testing.T) {
	assert.Equal(t, 18, Difficulty(18, 0))
	assert.Equal(t, 18, Difficulty(18, 99_999))
	assert.Equal(t, 19, Difficulty(18, 100_000))
	assert.Equal(t, 22, Difficulty(18, 400_000))
	assert.Equal(t, 22, Difficulty(18, 10_000_000))
	assert.Equal(t, 18, Difficulty(18, -5))

	prev := 0
	for size := 0; size < 1_000_000; size += 25_000 {
		d := Difficulty(18, size)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestSolve_CorrectAndMinimal(t *testing.T) {
	c := Challenge{ID: "c1", Nonce: testNonce, Difficulty: 10}

	p, err := NewSolver().Solve(context.Background(), c, testHash, nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ChallengeID)
	assert.Equal(t, testNonce, p.Nonce)
	assert.Equal(t, testHash, p.PayloadHash)

	h := Hash(testNonce, p.Counter, testHash)
	assert.GreaterOrEqual(t, LeadingZeroBits(h[:]), 10)

	for i := uint64(0); i < p.Counter; i++ {
		h := Hash(testNonce, i, testHash)
		require.False(t, Meets(h[:], 10), "counter %d also qualifies", i)
	}
}

func TestSolve_ZeroDifficulty(t *testing.T) {
	p, err := NewSolver().Solve(context.Background(), Challenge{Nonce: testNonce}, testHash, nil)
	require.NoError(t, err)
	assert.Zero(t, p.Counter)
}

func TestSolve_Exhausted(t *testing.T) {
	c := Challenge{Nonce: testNonce, Difficulty: 256}
	_, err := NewSolver(WithCeiling(1000)).Solve(context.Background(), c, testHash, nil)
	assert.ErrorIs(t, err, common.ErrPowExhausted)
}

func TestSolve_Progress(t *testing.T) {
	c := Challenge{Nonce: testNonce, Difficulty: 256}
	var seen []uint64

	_, err := NewSolver(WithCeiling(50), WithProgressInterval(10)).
		Solve(context.Background(), c, testHash, func(n uint64) { seen = append(seen, n) })
	require.ErrorIs(t, err, common.ErrPowExhausted)

	require.NotEmpty(t, seen)
	for i, n := range seen {
		assert.Zero(t, n%10)
		if i > 0 {
			assert.Greater(t, n, seen[i-1])
		}
	}
}

func TestStart_TerminalEventThenClose(t *testing.T) {
	c := Challenge{Nonce: testNonce, Difficulty: 256}
	events := NewSolver(WithCeiling(100), WithProgressInterval(0)).Start(context.Background(), c, testHash)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, EventFailed, got[0].Kind)
	assert.Equal(t, uint64(100), got[0].Iterations)
}

func TestSolve_Cancel(t *testing.T) {
	c := Challenge{Nonce: testNonce, Difficulty: 256}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := NewSolver().Solve(ctx, c, testHash, nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("solver did not stop after cancel")
	}
}

func TestStart_AbandonedReaderDoesNotLeak(t *testing.T) {
	c := Challenge{Nonce: testNonce, Difficulty: 256}
	ctx, cancel := context.WithCancel(context.Background())

	events := NewSolver().Start(ctx, c, testHash)
	cancel()

	// the channel must close once the goroutine exits, even unread
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewChallenge("c1", testHash, 8, now, 5*time.Minute)
	require.NoError(t, err)
	assert.Len(t, c.Nonce, 64)
	assert.Equal(t, Algorithm, c.Algorithm)

	proof, err := NewSolver().Solve(context.Background(), *c, testHash, nil)
	require.NoError(t, err)

	assert.NoError(t, Verify(*proof, c, testHash, now))
	assert.NoError(t, Verify(*proof, c, testHash, c.ExpiresAt))

	t.Run("expired", func(t *testing.T) {
		err := Verify(*proof, c, testHash, c.ExpiresAt.Add(time.Second))
		assert.ErrorIs(t, err, common.ErrChallengeExpired)
		assert.ErrorIs(t, err, common.ErrAdmissionDenied)
	})

	t.Run("consumed", func(t *testing.T) {
		used := *c
		used.Used = true
		assert.ErrorIs(t, Verify(*proof, &used, testHash, now), common.ErrChallengeConsumed)
	})

	t.Run("substituted payload", func(t *testing.T) {
		other := strings.Repeat("11", 32)
		assert.ErrorIs(t, Verify(*proof, c, other, now), common.ErrAdmissionDenied)
	})

	t.Run("tampered fields", func(t *testing.T) {
		for _, mutate := range []func(p *Proof){
			func(p *Proof) { p.ChallengeID = "other" },
			func(p *Proof) { p.Nonce = strings.Repeat("cd", 32) },
			func(p *Proof) { p.PayloadHash = strings.Repeat("22", 32) },
		} {
			p := *proof
			mutate(&p)
			assert.ErrorIs(t, Verify(p, c, testHash, now), common.ErrAdmissionDenied)
		}
	})

	t.Run("insufficient work", func(t *testing.T) {
		hard := *c
		hard.Difficulty = 200
		assert.ErrorIs(t, Verify(*proof, &hard, testHash, now), common.ErrAdmissionDenied)
	})
}
