package params

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// N64Q30 is a toy set for tests and demos.
	N64Q30 = ParametersLiteral{N: 64, Q: 1073741441, Base: 2}
	// N256Q30 is a small set with binary gadget.
	N256Q30 = ParametersLiteral{N: 256, Q: 1073738753, Base: 2}
	// N256Q30B4 trades a shorter gadget for wider preimages.
	N256Q30B4 = ParametersLiteral{N: 256, Q: 1073738753, Base: 4}
	// N512Q32 and N1024Q32 use the 32-bit prime 0xffffd801.
	N512Q32  = ParametersLiteral{N: 512, Q: 4294957057, Base: 2}
	N1024Q32 = ParametersLiteral{N: 1024, Q: 4294957057, Base: 2}
)

// Presets indexes the predefined literals by name.
var Presets = map[string]ParametersLiteral{
	"N64Q30":    N64Q30,
	"N256Q30":   N256Q30,
	"N256Q30B4": N256Q30B4,
	"N512Q32":   N512Q32,
	"N1024Q32":  N1024Q32,
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Preset builds the named preset.
func Preset(name string) (Parameters, error) {
	lit, ok := Presets[name]
	if !ok {
		return Parameters{}, errors.Errorf("params: unknown preset %q (have %v)", name, PresetNames())
	}
	return NewParametersFromLiteral(lit)
}
