package pow

import (
	"context"
	"crypto/sha256"

	"github.com/dmitrijs2005/timevault/internal/common"
)

const (
	DefaultCeiling          uint64 = 1 << 32
	DefaultProgressInterval uint64 = 100_000

	cancelCheckMask = 4096 - 1
)

type EventKind int

const (
	EventProgress EventKind = iota
	EventSolved
	EventFailed
)

// Event is a message from a running solve. Iterations is cumulative.
type Event struct {
	Kind       EventKind
	Iterations uint64
	Proof      *Proof
	Err        error
}

// Solver searches counters sequentially from zero. A Solver has no mutable
// state and can run any number of solves at once.
type Solver struct {
	ceiling  uint64
	progress uint64
}

type Option func(*Solver)

// WithCeiling caps the number of counters tried before giving up with
// common.ErrPowExhausted.
func WithCeiling(n uint64) Option {
	return func(s *Solver) { s.ceiling = n }
}

// WithProgressInterval sets how many iterations pass between progress
// events. Zero disables progress events.
func WithProgressInterval(n uint64) Option {
	return func(s *Solver) { s.progress = n }
}

func NewSolver(opts ...Option) *Solver {
	s := &Solver{ceiling: DefaultCeiling, progress: DefaultProgressInterval}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start runs the search in its own goroutine and returns its event stream.
// The stream carries any number of progress events followed by exactly one
// Solved or Failed event, then closes. Progress events are dropped when the
// reader falls behind. Cancelling ctx abandons the search; the goroutine
// exits without delivering a result if nobody is reading.
func (s *Solver) Start(ctx context.Context, c Challenge, payloadHash string) <-chan Event {
	events := make(chan Event, 1)

	go func() {
		defer close(events)

		ev := s.run(ctx, c, payloadHash, func(n uint64) {
			select {
			case events <- Event{Kind: EventProgress, Iterations: n}:
			default:
			}
		})

		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}()

	return events
}

// Solve blocks until the challenge is solved, the ceiling is hit or ctx is
// done. onProgress may be nil.
func (s *Solver) Solve(ctx context.Context, c Challenge, payloadHash string, onProgress func(iterations uint64)) (*Proof, error) {
	for ev := range s.Start(ctx, c, payloadHash) {
		switch ev.Kind {
		case EventProgress:
			if onProgress != nil {
				onProgress(ev.Iterations)
			}
		case EventSolved:
			return ev.Proof, nil
		case EventFailed:
			return nil, ev.Err
		}
	}
	return nil, ctx.Err()
}

func (s *Solver) run(ctx context.Context, c Challenge, payloadHash string, progress func(uint64)) Event {
	// nonce | 16 hex digits | payload hash, counter digits rewritten in place
	buf := make([]byte, 0, len(c.Nonce)+16+len(payloadHash))
	buf = append(buf, c.Nonce...)
	off := len(buf)
	buf = append(buf, "0000000000000000"...)
	buf = append(buf, payloadHash...)
	digits := buf[off : off+16]

	for counter := uint64(0); counter < s.ceiling; counter++ {
		if counter&cancelCheckMask == 0 && ctx.Err() != nil {
			return Event{Kind: EventFailed, Iterations: counter, Err: ctx.Err()}
		}

		putHex16(digits, counter)
		h := sha256.Sum256(buf)
		if Meets(h[:], c.Difficulty) {
			return Event{
				Kind:       EventSolved,
				Iterations: counter + 1,
				Proof: &Proof{
					ChallengeID: c.ID,
					Nonce:       c.Nonce,
					Counter:     counter,
					PayloadHash: payloadHash,
				},
			}
		}

		if n := counter + 1; s.progress > 0 && n%s.progress == 0 {
			progress(n)
		}
	}

	return Event{Kind: EventFailed, Iterations: s.ceiling, Err: common.ErrPowExhausted}
}

const hexDigits = "0123456789abcdef"

func putHex16(dst []byte, v uint64) {
	for i := 15; i >= 0; i-- {
		dst[i] = hexDigits[v&0xf]
		v >>= 4
	}
}
