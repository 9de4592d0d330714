package scoring

// Level is a qualitative confidence tier.
type Level string

const (
	LevelHigh      Level = "high"
	LevelMedium    Level = "medium"
	LevelLow       Level = "low"
	LevelUncertain Level = "uncertain"
)

// LevelFor maps a confidence to its tier.
func LevelFor(confidence float64) Level {
	switch {
	case confidence > 0.85:
		return LevelHigh
	case confidence > 0.60:
		return LevelMedium
	case confidence > 0.40:
		return LevelLow
	default:
		return LevelUncertain
	}
}
