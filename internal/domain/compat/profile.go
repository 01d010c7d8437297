package compat

// Reading defaults substituted when a profile has no measurement yet.
const (
	DefaultHeartRate   = 70
	DefaultTemperature = 36.5
)

// Profile is the engine's view of one person. It is a plain value; callers
// build it with NewProfile so missing readings are already defaulted.
type Profile struct {
	Type        TypeCode `json:"type_code"`
	HeartRate   int      `json:"heart_rate"`
	Temperature float64  `json:"temperature"`
}

// NewProfile builds a Profile from possibly missing readings. A nil or zero
// reading is replaced with the default, matching how stored profiles with
// an unset column have always been scored.
func NewProfile(t TypeCode, heartRate *int, temperature *float64) Profile {
	p := Profile{
		Type:        t,
		HeartRate:   DefaultHeartRate,
		Temperature: DefaultTemperature,
	}
	if heartRate != nil && *heartRate != 0 {
		p.HeartRate = *heartRate
	}
	if temperature != nil && *temperature != 0 {
		p.Temperature = *temperature
	}
	return p
}
