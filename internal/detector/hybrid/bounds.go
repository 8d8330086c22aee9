package hybrid

// BoundsPolicy holds the static operational temperature limits.
type BoundsPolicy struct {
	MinTemp float64 `json:"min_temp"`
	MaxTemp float64 `json:"max_temp"`
}

// Breached reports whether the raw (unscaled) reading lies outside the limits.
// The limits themselves are inside the safe range.
func (b BoundsPolicy) Breached(temperature float64) bool {
	return temperature < b.MinTemp || temperature > b.MaxTemp
}
