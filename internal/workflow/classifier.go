package workflow

import "strings"

// Class is the disposition of a transient notification.
type Class int

const (
	// ClassUnknown covers any phrase outside the rule set. Unknown phrases
	// are treated as informational rather than guessed at.
	ClassUnknown Class = iota

	// ClassFatal blocks the unit: it is ledgered and skipped.
	ClassFatal

	// ClassInformational notifications are dismissed and processing
	// continues as if the submit had succeeded.
	ClassInformational
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassInformational:
		return "informational"
	default:
		return "unknown"
	}
}

// BlockingPhrase is the application's wording when the requested operation
// cannot be applied to the resource at all. It is the one built-in fatal
// pattern.
const BlockingPhrase = "not allowed on this resource"

// Rule maps a notification substring to a class. Matching is
// case-insensitive.
type Rule struct {
	Pattern string
	Class   Class
}

// Classifier resolves notification text against a closed rule set. New
// phrases are added as rules, never as scattered string literals at call
// sites.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier from the built-in rules plus any extra
// fatal patterns from configuration.
func NewClassifier(extraFatal []string) *Classifier {
	rules := []Rule{
		{Pattern: BlockingPhrase, Class: ClassFatal},
	}
	for _, p := range extraFatal {
		if strings.TrimSpace(p) == "" {
			continue
		}
		rules = append(rules, Rule{Pattern: p, Class: ClassFatal})
	}
	return &Classifier{rules: rules}
}

// Classify returns the disposition for text. First matching rule wins;
// anything unmatched is ClassUnknown, which callers treat as non-fatal.
func (c *Classifier) Classify(text string) Class {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Class
		}
	}
	return ClassUnknown
}
