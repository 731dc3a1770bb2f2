// Package filter classifies free-text reward signals into a Polarity so
// the engine can accept either a polarity string or raw feedback text when
// recording reward. Grounded on
// memory-service/pkg/filter/dialogueact.go's rule-based classification
// idiom: word-boundary regexes compiled once at init, checked most-specific
// first, falling back to a neutral default.
package filter

import (
	"regexp"
	"strings"
)

// Polarity is the outcome of classifying a reward utterance.
type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
	Neutral  Polarity = "neutral"
)

var positivePatterns = []string{
	`\b(yes|yeah|yep|yup|correct|right|exactly|perfect|great|good|nice|love|like|awesome|helpful|thanks|thank you)\b`,
	`\b(that'?s right|well done|good job|spot on)\b`,
	`^(👍|✅|💯|🙌)$`,
}

var negativePatterns = []string{
	`\b(no|nope|wrong|incorrect|bad|terrible|awful|hate|dislike|useless|unhelpful)\b`,
	`\b(that'?s wrong|not right|not correct|doesn'?t help)\b`,
	`^(👎|❌)$`,
}

var (
	compiledPositive []*regexp.Regexp
	compiledNegative []*regexp.Regexp
)

func init() {
	compiledPositive = compilePatterns(positivePatterns)
	compiledNegative = compilePatterns(negativePatterns)
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err == nil {
			out = append(out, re)
		}
	}
	return out
}

// Classifier implements a lexical PolarityClassifier. The engine does not
// install it on its own: it takes effect only when passed as
// Options.Polarity; without a classifier, free-text reward is rejected.
type Classifier struct{}

// NewClassifier constructs the default lexical polarity classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the polarity of a free-text reward utterance.
// Negative patterns are checked first since "no, that's wrong" would
// otherwise also match a stray "right"-adjacent word in longer phrases.
func (c *Classifier) Classify(text string) (Polarity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Neutral, nil
	}
	if matchesAny(text, compiledNegative) {
		return Negative, nil
	}
	if matchesAny(text, compiledPositive) {
		return Positive, nil
	}
	return Neutral, nil
}

func matchesAny(content string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}
