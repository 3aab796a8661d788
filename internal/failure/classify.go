// Package failure classifies failed executor invocations and decides how
// the loop reacts to them.
package failure

import (
	"regexp"
	"strings"
)

// Category is the coarse cause of a failed invocation
type Category string

const (
	PermanentBlock Category = "permanent_block"
	BotChallenge   Category = "bot_challenge"
	RateLimited    Category = "rate_limited"
	Timeout        Category = "timeout"
	NetworkError   Category = "network_error"
	UnknownFailure Category = "unknown"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// Retryable reports whether the category counts toward the consecutive-failure ceiling
func (c Category) Retryable() bool {
	switch c {
	case PermanentBlock, BotChallenge:
		return false
	case RateLimited, Timeout, NetworkError, UnknownFailure:
		return true
	}
	return true
}

// timeoutExitStatus is what timeout(1) exits with
const timeoutExitStatus = 124

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

// rules are checked in order; the first match wins
var rules = []rule{
	{PermanentBlock, regexp.MustCompile(`\b403\b|forbidden`)},
	{BotChallenge, regexp.MustCompile(`\b(bot|challenge|captcha|blocked)\b`)},
	{RateLimited, regexp.MustCompile(`\b429\b|too many requests|rate[-_ ]?limit`)},
	{Timeout, regexp.MustCompile(`timeout|timed out`)},
	{NetworkError, regexp.MustCompile(`network|connection|\bdns\b`)},
}

// Classify maps an exit status and the invocation output to a category.
// It is pure and case-insensitive.
func Classify(exitStatus int, output string) Category {
	text := strings.ToLower(output)
	for _, r := range rules {
		if r.category == Timeout && exitStatus == timeoutExitStatus {
			return Timeout
		}
		if r.pattern.MatchString(text) {
			return r.category
		}
	}
	return UnknownFailure
}

// Classifier turns a failed invocation into a category. Implementations
// backed by structured error signals can replace the text heuristics.
type Classifier interface {
	Classify(exitStatus int, output string) Category
}

// TextClassifier classifies by scanning output text
type TextClassifier struct{}

// Classify implements Classifier
func (TextClassifier) Classify(exitStatus int, output string) Category {
	return Classify(exitStatus, output)
}
