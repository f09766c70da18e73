package voicechannel

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyOwns is returned by Create when the user already owns an active channel.
	// Use errors.As with *AlreadyOwnsError to recover the existing channel id.
	ErrAlreadyOwns = errors.New("user already owns an active temporary channel")

	// ErrNotManaged is returned for operations against a channel id the cache does not
	// track. No platform call is attempted in that case.
	ErrNotManaged = errors.New("channel is not a managed temporary channel")
)

// AlreadyOwnsError carries the user's existing channel so callers can redirect them to it
// instead of creating a duplicate.
type AlreadyOwnsError struct {
	ChannelID string
}

func (e *AlreadyOwnsError) Error() string {
	return fmt.Sprintf("user already owns channel %s", e.ChannelID)
}

// Is lets errors.Is(err, ErrAlreadyOwns) match.
func (e *AlreadyOwnsError) Is(target error) bool { return target == ErrAlreadyOwns }

// PlatformError wraps a fatal platform call failure during Create.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string { return fmt.Sprintf("platform %s: %v", e.Op, e.Err) }

func (e *PlatformError) Unwrap() error { return e.Err }

// Diagnostic records the outcome of one best-effort side effect during Create. A nil Err
// means the step succeeded. Collecting these instead of discarding them keeps degraded
// creations observable.
type Diagnostic struct {
	Step string
	Err  error
}

// Failed returns the diagnostics whose step failed.
func Failed(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}
