package failure

import (
	"fmt"
	"time"
)

// Action is what the loop does after a failed invocation
type Action string

const (
	Retry           Action = "retry"
	SkipAndContinue Action = "skip"
	Abort           Action = "abort"
)

// DefaultMaxConsecutive is used when no ceiling is configured
const DefaultMaxConsecutive = 3

// Retry delays per category
const (
	RateLimitDelay = 30 * time.Second
	TransientDelay = 2 * time.Second
	UnknownDelay   = 5 * time.Second
)

// Decision is the outcome of the backoff policy
type Decision struct {
	Action       Action
	Delay        time.Duration
	ResetCounter bool
}

// String renders the decision for log lines, e.g. "retry in 30s"
func (d Decision) String() string {
	if d.Action == Retry && d.Delay > 0 {
		return fmt.Sprintf("%s in %s", d.Action, d.Delay)
	}
	return string(d.Action)
}

// Decide applies the backoff policy. count is the number of consecutive
// retryable failures including the current one.
func Decide(category Category, count, maxConsecutive int) Decision {
	if maxConsecutive <= 0 {
		maxConsecutive = DefaultMaxConsecutive
	}

	if !category.Retryable() {
		return Decision{Action: SkipAndContinue, ResetCounter: true}
	}

	if count >= maxConsecutive {
		return Decision{Action: Abort}
	}

	switch category {
	case RateLimited:
		return Decision{Action: Retry, Delay: RateLimitDelay}
	case Timeout, NetworkError:
		return Decision{Action: Retry, Delay: TransientDelay}
	default:
		return Decision{Action: Retry, Delay: UnknownDelay}
	}
}

// Tracker counts consecutive retryable failures across iterations
type Tracker struct {
	max   int
	count int
}

// NewTracker creates a tracker with the given ceiling (<= 0 means default)
func NewTracker(maxConsecutive int) *Tracker {
	if maxConsecutive <= 0 {
		maxConsecutive = DefaultMaxConsecutive
	}
	return &Tracker{max: maxConsecutive}
}

// Failure records a failed invocation and returns the decision for it
func (t *Tracker) Failure(category Category) Decision {
	if category.Retryable() {
		t.count++
	}
	d := Decide(category, t.count, t.max)
	if d.ResetCounter {
		t.count = 0
	}
	return d
}

// Success resets the counter
func (t *Tracker) Success() {
	t.count = 0
}

// Count returns the current number of consecutive retryable failures
func (t *Tracker) Count() int {
	return t.count
}

// Max returns the ceiling
func (t *Tracker) Max() int {
	return t.max
}
