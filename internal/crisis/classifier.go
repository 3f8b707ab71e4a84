// Package crisis scans free text for self-harm and suicide risk indicators.
//
// Matching is plain substring containment against a tiered keyword lexicon.
// There are no word-boundary checks, so "disconnected" also matches inside
// longer words. The confidence value is a heuristic score, not a probability.
package crisis

import (
	"math"
	"strings"
	"unicode/utf8"

	"carealert/internal/models"
	"carealert/internal/validation"
)

// Scoring weights for the confidence heuristic.
const (
	perTriggerWeight  = 0.3
	highTriggerBoost  = 0.2
	longTextBoost     = 0.1
	longTextThreshold = 100 // characters, not bytes
)

// DefaultMaxTextBytes bounds the input accepted by Classify.
const DefaultMaxTextBytes = 10000

// Classifier matches text against a lexicon. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	lexicon  Lexicon
	maxBytes int
}

// NewClassifier creates a classifier over the given lexicon.
// An empty lexicon falls back to DefaultLexicon. maxBytes <= 0 disables the
// input size check.
func NewClassifier(lexicon Lexicon, maxBytes int) *Classifier {
	lexicon = lexicon.Normalized()
	if lexicon.IsEmpty() {
		lexicon = DefaultLexicon().Normalized()
	}
	return &Classifier{lexicon: lexicon, maxBytes: maxBytes}
}

// Lexicon returns the phrase lists in use.
func (c *Classifier) Lexicon() Lexicon {
	return c.lexicon
}

// Classify returns the crisis event for text. The only error is a
// *validation.Error for malformed input.
func (c *Classifier) Classify(text string) (models.CrisisEvent, error) {
	if err := validation.ValidateText(text, c.maxBytes); err != nil {
		return models.CrisisEvent{Triggers: []string{}}, err
	}
	return c.classify(validation.NormalizeText(text)), nil
}

func (c *Classifier) classify(normalized string) models.CrisisEvent {
	event := models.CrisisEvent{Triggers: []string{}}
	if normalized == "" {
		return event
	}

	// Lower tiers are only scanned when every higher tier came up empty.
	for _, t := range c.lexicon.tiers() {
		matched := matchPhrases(normalized, t.phrases)
		if len(matched) == 0 {
			continue
		}
		event.Detected = true
		event.Level = t.level
		event.Triggers = matched
		break
	}

	event.Confidence = confidence(event, utf8.RuneCountInString(normalized))
	return event
}

func matchPhrases(text string, phrases []string) []string {
	var matched []string
	for _, p := range phrases {
		if strings.Contains(text, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// confidence scores an event: 0.3 per trigger, plus 0.2 per high-severity
// trigger, plus 0.1 for long text with several triggers. Each step is capped
// at 1.0 and the result is rounded to two decimals.
func confidence(event models.CrisisEvent, textLen int) float64 {
	n := len(event.Triggers)
	if n == 0 {
		return 0
	}

	score := math.Min(perTriggerWeight*float64(n), 1.0)

	highCount := 0
	if event.Level == models.LevelHigh {
		highCount = n
	}
	score = math.Min(score+highTriggerBoost*float64(highCount), 1.0)

	if textLen > longTextThreshold && n > 1 {
		score = math.Min(score+longTextBoost, 1.0)
	}

	return math.Round(score*100) / 100
}
