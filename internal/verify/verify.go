// Package verify decides whether an executor's completion claim is backed
// by the persisted state.
package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/daydemir/research-ralph/internal/state"
)

// Marker is the explicit completion signal an executor prints
const Marker = "<promise>COMPLETE</promise>"

// Outcome is the result of checking a completion claim
type Outcome int

const (
	// NotClaimed means the output made no completion claim
	NotClaimed Outcome = iota
	// Verified means the claim matches the state
	Verified
	// Rejected means the output claimed completion but the state disagrees
	Rejected
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case NotClaimed:
		return "not-claimed"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Verdict explains an Outcome
type Verdict struct {
	Outcome  Outcome
	Reason   string
	Fallback bool // claim came from the plain-language heuristic, not the marker
}

// Verifier checks an invocation's output against freshly loaded state
type Verifier interface {
	Verify(output string, st *state.State) Verdict
}

var (
	claimPatterns = []*regexp.Regexp{
		regexp.MustCompile(`research.*complete`),
		regexp.MustCompile(`all.*papers.*analyzed`),
	}
	negationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`not.*complete`),
		regexp.MustCompile(`isn't complete`),
		regexp.MustCompile(`aren't.*analyzed`),
		regexp.MustCompile(`not.*analyzed`),
	}
)

// MarkerVerifier accepts the explicit marker and, when it is absent, a
// plain-language claim. Either way the state must have no pending or
// analyzing paper and at least one analyzed paper.
type MarkerVerifier struct {
	// DisableFallback ignores plain-language claims
	DisableFallback bool
}

// Verify implements Verifier
func (v MarkerVerifier) Verify(output string, st *state.State) Verdict {
	fallback := false
	if !strings.Contains(output, Marker) {
		if v.DisableFallback || !ClaimsComplete(output) {
			return Verdict{Outcome: NotClaimed}
		}
		fallback = true
	}

	if gaps := st.Unfinished(); len(gaps) > 0 {
		return Verdict{
			Outcome:  Rejected,
			Reason:   "state mismatch: " + strings.Join(gaps, ", "),
			Fallback: fallback,
		}
	}

	c := st.Counts()
	return Verdict{
		Outcome:  Verified,
		Reason:   fmt.Sprintf("%d papers analyzed, none pending", c.Analyzed()),
		Fallback: fallback,
	}
}

// ClaimsComplete reports whether output claims completion in plain language
// without negating it
func ClaimsComplete(output string) bool {
	text := strings.ToLower(output)
	claimed := false
	for _, re := range claimPatterns {
		if re.MatchString(text) {
			claimed = true
			break
		}
	}
	if !claimed {
		return false
	}
	for _, re := range negationPatterns {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}
