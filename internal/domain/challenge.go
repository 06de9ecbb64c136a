package domain

import (
	"fmt"
	"strings"
)

// CheckKind selects the buffer a check inspects and how its pattern is matched.
type CheckKind int

// Check kinds. CheckUnknown is only produced by malformed content and never matches.
const (
	CheckUnknown CheckKind = iota
	CheckHTMLIncludes
	CheckCSSIncludes
	CheckHTMLRegex
	CheckCSSRegex
)

var checkKindNames = map[CheckKind]string{
	CheckHTMLIncludes: "html_includes",
	CheckCSSIncludes:  "css_includes",
	CheckHTMLRegex:    "html_regex",
	CheckCSSRegex:     "css_regex",
}

// ParseCheckKind converts the content-file name of a kind ("html_includes", ...).
func ParseCheckKind(s string) (CheckKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, v := range checkKindNames {
		if v == name {
			return k, nil
		}
	}
	return CheckUnknown, fmt.Errorf("unknown check kind %q", s)
}

func (k CheckKind) String() string {
	if name, ok := checkKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// TargetsHTML reports whether the check scans the HTML buffer.
func (k CheckKind) TargetsHTML() bool {
	return k == CheckHTMLIncludes || k == CheckHTMLRegex
}

// IsRegex reports whether the pattern is a regular expression source.
func (k CheckKind) IsRegex() bool {
	return k == CheckHTMLRegex || k == CheckCSSRegex
}

// MarshalText implements encoding.TextMarshaler.
func (k CheckKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CheckKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCheckKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Check is one atomic predicate against the HTML or CSS buffer.
type Check struct {
	Kind    CheckKind `json:"type" yaml:"type"`
	Pattern string    `json:"value" yaml:"value"`
}

// Challenge is a unit of learner work, satisfied when all of its checks pass.
type Challenge struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Hint   string  `json:"hint" yaml:"hint"`
	Checks []Check `json:"checks" yaml:"checks"`
}

// ChallengeIDs returns the IDs of the given challenges in order.
func ChallengeIDs(challenges []Challenge) []string {
	ids := make([]string, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	return ids
}
