package models

// Crisis tier constants, highest first.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// CrisisEvent is the result of classifying a piece of free text.
// It is never persisted directly; callers that act on it store a CrisisAlert.
type CrisisEvent struct {
	Detected   bool     `json:"detected"`
	Level      string   `json:"level,omitempty"` // high, medium, low, or empty when not detected
	Triggers   []string `json:"triggers"`
	Confidence float64  `json:"confidence"`
}

// LevelRank orders crisis levels so they can be compared. Unknown levels rank 0.
func LevelRank(level string) int {
	switch level {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// IsValidLevel reports whether level names a crisis tier.
func IsValidLevel(level string) bool {
	return LevelRank(level) > 0
}

// MeetsLevel reports whether the event was detected at or above min.
func (e CrisisEvent) MeetsLevel(min string) bool {
	return e.Detected && LevelRank(e.Level) >= LevelRank(min)
}
