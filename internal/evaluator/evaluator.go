// Package evaluator decides which challenges a learner's HTML/CSS satisfies.
//
// Evaluation is a pure function of (challenges, html, css). The only state kept
// is a cache of compiled matchers keyed by check, which does not change results.
package evaluator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/codeando/internal/domain"
)

// Evaluator runs checks against HTML and CSS buffers. It is safe for concurrent use.
type Evaluator struct {
	timeout  time.Duration
	matchers sync.Map // domain.Check -> Matcher
}

// New creates an evaluator whose backtracking regex scans are bounded by
// timeout. A non-positive timeout disables the bound.
func New(timeout time.Duration) *Evaluator {
	return &Evaluator{timeout: timeout}
}

var defaultEvaluator = New(DefaultMatchTimeout)

// Default returns the process-wide evaluator.
func Default() *Evaluator {
	return defaultEvaluator
}

func (e *Evaluator) matcher(check domain.Check) Matcher {
	if m, ok := e.matchers.Load(check); ok {
		return m.(Matcher)
	}
	m, err := Compile(check, e.timeout)
	if err != nil {
		slog.Debug("Check pattern never matches", "kind", check.Kind.String(), "pattern", check.Pattern, "error", err)
	}
	actual, _ := e.matchers.LoadOrStore(check, m)
	return actual.(Matcher)
}

// Reset drops all compiled matchers. Call it when the content is reloaded.
func (e *Evaluator) Reset() {
	e.matchers.Clear()
}

// cached reports the number of compiled matchers.
func (e *Evaluator) cached() int {
	n := 0
	e.matchers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Check reports whether a single check passes.
func (e *Evaluator) Check(check domain.Check, html, css string) bool {
	buffer := css
	if check.Kind.TargetsHTML() {
		buffer = html
	}
	return e.matcher(check).Match(buffer)
}

// Challenge reports whether every check of the challenge passes.
// A challenge without checks is always complete.
func (e *Evaluator) Challenge(challenge domain.Challenge, html, css string) bool {
	for _, check := range challenge.Checks {
		if !e.Check(check, html, css) {
			return false
		}
	}
	return true
}

// All returns the IDs of passing challenges, in input order.
func (e *Evaluator) All(challenges []domain.Challenge, html, css string) []string {
	completed := make([]string, 0, len(challenges))
	for _, challenge := range challenges {
		if e.Challenge(challenge, html, css) {
			completed = append(completed, challenge.ID)
		}
	}
	return completed
}

// EvaluateCheck evaluates one check with the default evaluator.
func EvaluateCheck(check domain.Check, html, css string) bool {
	return defaultEvaluator.Check(check, html, css)
}

// EvaluateChallenge evaluates one challenge with the default evaluator.
func EvaluateChallenge(challenge domain.Challenge, html, css string) bool {
	return defaultEvaluator.Challenge(challenge, html, css)
}

// EvaluateAll evaluates a collection with the default evaluator.
func EvaluateAll(challenges []domain.Challenge, html, css string) []string {
	return defaultEvaluator.All(challenges, html, css)
}
