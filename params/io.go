package params

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a ParametersLiteral from a .json, .yaml or .yml file and
// validates it.
func LoadFile(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, errors.Wrap(err, "params: read")
	}
	var lit ParametersLiteral
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &lit)
	case ".json":
		err = json.Unmarshal(data, &lit)
	default:
		return Parameters{}, errors.Errorf("params: unsupported file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Parameters{}, errors.Wrapf(err, "params: decode %s", path)
	}
	return NewParametersFromLiteral(lit)
}

// SaveFile writes the literal of p to path, choosing the encoding from the
// file extension.
func SaveFile(path string, p Parameters) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p.lit)
	case ".json":
		data, err = json.MarshalIndent(p.lit, "", "  ")
	default:
		return errors.Errorf("params: unsupported file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return errors.Wrap(err, "params: encode")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "params: write")
}

// Resolve returns the preset called nameOrPath, or loads it as a file.
func Resolve(nameOrPath string) (Parameters, error) {
	if _, ok := Presets[nameOrPath]; ok {
		return Preset(nameOrPath)
	}
	return LoadFile(nameOrPath)
}
