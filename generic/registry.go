/*
registry.go - Vertical registration and lookup

PURPOSE:
  Vertical packages (ecommerce, saas, marketplace, rideshare, nonprofit)
  register themselves on init(). The API, CLI, and runner resolve verticals
  by name without importing a concrete package.

USAGE:
  // In ecommerce/vertical.go
  func init() { generic.RegisterVertical(Vertical{}) }

  // In cmd/synthgen
  v, err := generic.LookupVertical("ecommerce")
  cfg, factory, err := v.Build(generic.BuildOptions{Seed: 42})

SEE ALSO:
  - factory/vertical.go: Custom verticals from JSON/YAML specs
*/
package generic

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"
)

// BuildOptions are the per-run knobs shared by every vertical.
type BuildOptions struct {
	Seed     uint64
	Start    time.Time // zero = vertical default
	Periods  int       // zero = vertical default
	Currency string    // empty = vertical default

	// Scale multiplies every stage's base volume (0 = 1.0). Populations a
	// vertical tops up in its period hook follow the same factor.
	Scale float64
}

// ScaleOr returns the scale factor, defaulting to 1.
func (o BuildOptions) ScaleOr() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// Vertical builds the configuration and factory of one business type.
// Build must return a fresh factory each call; factories may hold run state.
type Vertical interface {
	Name() string
	Description() string
	Build(opts BuildOptions) (Config, EntityFactory, error)
}

var (
	verticalRegistry = make(map[string]Vertical)
	registryMu       sync.RWMutex

	namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// ValidateName checks a vertical name. Names become directory names and URL
// segments, so only lowercase letters, digits, '-' and '_' are allowed.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return &ConfigurationError{Field: "vertical",
			Reason: fmt.Sprintf("invalid name %q, want lowercase letters, digits, '-' or '_'", name)}
	}
	return nil
}

// RegisterVertical adds a vertical to the global registry.
// Call this from vertical package init() functions. It panics on an invalid name.
func RegisterVertical(v Vertical) {
	if err := ValidateName(v.Name()); err != nil {
		panic(err)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	verticalRegistry[v.Name()] = v
}

// UnregisterVertical removes a vertical. Used when a custom spec is deleted.
func UnregisterVertical(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(verticalRegistry, name)
}

// LookupVertical finds a registered vertical by name.
func LookupVertical(name string) (Vertical, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := verticalRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVertical, name)
	}
	return v, nil
}

// ListVerticals returns all registered verticals sorted by name.
func ListVerticals() []Vertical {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Vertical, 0, len(verticalRegistry))
	for _, v := range verticalRegistry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// NewRun resolves a vertical by name and returns a ready Assembler.
func NewRun(name string, opts BuildOptions, assemblerOpts ...Option) (*Assembler, error) {
	v, err := LookupVertical(name)
	if err != nil {
		return nil, err
	}
	cfg, factory, err := v.Build(opts)
	if err != nil {
		return nil, err
	}
	return NewAssembler(cfg, factory, assemblerOpts...)
}

// ApplyOptions overlays non-zero options onto a vertical's default config.
func ApplyOptions(cfg Config, opts BuildOptions) Config {
	cfg.Seed = opts.Seed
	if !opts.Start.IsZero() {
		cfg.Start = StartOfMonth(opts.Start)
	}
	if opts.Periods > 0 {
		cfg.Periods = opts.Periods
	}
	if opts.Currency != "" {
		cfg.Currency = opts.Currency
	}
	if scale := opts.ScaleOr(); scale != 1 {
		stages := make([]Stage, len(cfg.Stages))
		for i, s := range cfg.Stages {
			s.BaseVolume = ScaleCount(s.BaseVolume, scale)
			stages[i] = s
		}
		cfg.Stages = stages
	}
	return cfg
}

// ScaleCount scales a count, keeping non-zero counts at least 1.
func ScaleCount(n int, scale float64) int {
	if n == 0 {
		return 0
	}
	scaled := int(math.Round(float64(n) * scale))
	if scaled < 1 {
		return 1
	}
	return scaled
}
