package crisis

import (
	"strings"

	"carealert/internal/models"
)

// Lexicon holds the tiered phrase lists used for matching.
// Phrases are matched as plain substrings of the normalized text.
type Lexicon struct {
	High   []string
	Medium []string
	Low    []string
}

// DefaultLexicon returns the built-in phrase lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		High: []string{
			"suicide",
			"suicidal",
			"kill myself",
			"end my life",
			"want to die",
			"better off dead",
			"no reason to live",
			"take my own life",
			"self harm",
			"self-harm",
			"hurt myself",
			"cut myself",
			"overdose",
			"end it all",
			"not worth living",
		},
		Medium: []string{
			"hopeless",
			"worthless",
			"can't go on",
			"cannot go on",
			"give up on everything",
			"no way out",
			"trapped",
			"unbearable",
			"nobody cares",
			"hate myself",
			"empty inside",
			"a burden",
			"can't take it anymore",
		},
		Low: []string{
			"stressed",
			"anxious",
			"overwhelmed",
			"depressed",
			"lonely",
			"worried",
			"can't sleep",
			"disconnected",
			"exhausted",
			"struggling",
			"panic",
			"sad",
		},
	}
}

// Normalized returns a copy with phrases lowercased and trimmed.
// Empty phrases are dropped; order is preserved.
func (l Lexicon) Normalized() Lexicon {
	return Lexicon{
		High:   normalizePhrases(l.High),
		Medium: normalizePhrases(l.Medium),
		Low:    normalizePhrases(l.Low),
	}
}

// IsEmpty returns true if no tier has any phrase.
func (l Lexicon) IsEmpty() bool {
	return len(l.High) == 0 && len(l.Medium) == 0 && len(l.Low) == 0
}

// tiers returns the tiers in strict priority order.
func (l Lexicon) tiers() []tier {
	return []tier{
		{level: models.LevelHigh, phrases: l.High},
		{level: models.LevelMedium, phrases: l.Medium},
		{level: models.LevelLow, phrases: l.Low},
	}
}

type tier struct {
	level   string
	phrases []string
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
