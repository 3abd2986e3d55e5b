package codec

// Blood Pressure Feature bits (2a49).
var featureNames = []struct {
	bit  uint16
	name string
}{
	{0, "Body Movement Detection"},
	{1, "Cuff Fit Detection"},
	{2, "Irregular Pulse Detection"},
	{3, "Pulse Rate Range Detection"},
	{4, "Measurement Position Detection"},
}

// FeatureNames expands a Blood Pressure Feature bitmask into the names
// of the supported features.
func FeatureNames(mask uint16) []string {
	var out []string
	for _, f := range featureNames {
		if mask&(1<<f.bit) != 0 {
			out = append(out, f.name)
		}
	}
	return out
}
