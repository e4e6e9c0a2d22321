package domain

// DefaultMaxCapacityBase is the weighted load that equals 100% capacity.
const DefaultMaxCapacityBase = 12.0

// Settings is the singleton team configuration row.
type Settings struct {
	MaxCapacityBase float64
	ChannelID       string
}

// DefaultSettings is used when no settings row exists.
func DefaultSettings() Settings {
	return Settings{MaxCapacityBase: DefaultMaxCapacityBase}
}

// CapacityBase returns the configured base, falling back to fallback (or
// the package default) for non-positive values.
func (s Settings) CapacityBase(fallback float64) float64 {
	if s.MaxCapacityBase > 0 {
		return s.MaxCapacityBase
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxCapacityBase
}

// HasChannel reports whether overload alerts have a destination.
func (s Settings) HasChannel() bool {
	return s.ChannelID != ""
}
