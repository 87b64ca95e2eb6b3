package matcher

// Config holds matcher configuration.
type Config struct {
	DateWindowDays int     // Days either side of the line date (default: 7)
	Confidence     float64 // Fixed confidence for fuzzy matches (default: 0.8)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DateWindowDays: 7,
		Confidence:     0.8,
	}
}

// Result contains match information.
type Result struct {
	TransactionID string
	Confidence    float64 // Fixed per config, matches are not graded
	DateDiff      float64 // Days difference
	Notes         string
}
