package evaluator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single backtracking scan. It only applies to
// patterns RE2 cannot compile, such as lookaround.
const DefaultMatchTimeout = 50 * time.Millisecond

// Matcher reports whether a buffer satisfies a compiled check pattern.
type Matcher interface {
	Match(buffer string) bool
}

type literalMatcher string

func (m literalMatcher) Match(buffer string) bool {
	return strings.Contains(buffer, string(m))
}

// re2Matcher runs in linear time, so it needs no timeout.
type re2Matcher struct {
	re *regexp.Regexp
}

func (m re2Matcher) Match(buffer string) bool {
	return m.re.MatchString(buffer)
}

// ecmaMatcher handles the JavaScript-only syntax RE2 rejects. It fails closed:
// a timeout or engine error counts as a non-match.
type ecmaMatcher struct {
	re *regexp2.Regexp
}

func (m ecmaMatcher) Match(buffer string) bool {
	ok, err := m.re.MatchString(buffer)
	return err == nil && ok
}

type neverMatcher struct{}

func (neverMatcher) Match(string) bool { return false }

// Never is the matcher used for checks that can never pass: malformed regex
// sources and unknown kinds.
var Never Matcher = neverMatcher{}

// Compile builds the matcher for a check. Regex kinds are case-insensitive and
// compile with RE2 when the pattern allows it. Patterns using JavaScript-only
// syntax (lookaround, backreferences, \u escapes) fall back to an ECMAScript
// engine bounded by timeout.
// On failure the returned matcher is Never and err describes the problem; callers
// that only evaluate may ignore err.
func Compile(check domain.Check, timeout time.Duration) (Matcher, error) {
	switch check.Kind {
	case domain.CheckHTMLIncludes, domain.CheckCSSIncludes:
		return literalMatcher(check.Pattern), nil
	case domain.CheckHTMLRegex, domain.CheckCSSRegex:
		if re, err := regexp.Compile("(?i)" + check.Pattern); err == nil {
			return re2Matcher{re: re}, nil
		}
		re, err := regexp2.Compile(check.Pattern, regexp2.ECMAScript|regexp2.IgnoreCase)
		if err != nil {
			return Never, fmt.Errorf("compile %s pattern %q: %w", check.Kind, check.Pattern, err)
		}
		if timeout > 0 {
			re.MatchTimeout = timeout
		}
		return ecmaMatcher{re: re}, nil
	default:
		return Never, fmt.Errorf("unsupported check kind %d", int(check.Kind))
	}
}
