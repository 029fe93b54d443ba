package factory

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/warp/synth-engine/generic"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Presets returns the embedded specs, sorted by file name.
func Presets() ([]VerticalSpec, error) {
	entries, err := fs.ReadDir(presetFS, "presets")
	if err != nil {
		return nil, err
	}
	var out []VerticalSpec
	for _, e := range entries {
		data, err := presetFS.ReadFile(path.Join("presets", e.Name()))
		if err != nil {
			return nil, err
		}
		spec, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", e.Name(), err)
		}
		out = append(out, spec)
	}
	return out, nil
}

// Register compiles spec and adds it to the vertical registry.
func Register(spec VerticalSpec) (*SpecVertical, error) {
	v, err := NewSpecVertical(spec)
	if err != nil {
		return nil, err
	}
	generic.RegisterVertical(v)
	return v, nil
}

func init() {
	specs, err := Presets()
	if err != nil {
		panic(fmt.Sprintf("factory: embedded presets: %v", err))
	}
	for _, spec := range specs {
		if _, err := Register(spec); err != nil {
			panic(fmt.Sprintf("factory: preset %s: %v", spec.Name, err))
		}
	}
}
