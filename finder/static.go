// Package finder implements unit.Finder as a static, YAML-manifest-driven
// unit registry: which Units exist, the regex (or catch-all) trigger that
// makes each one applicable to a Target, and the global unit/exclude
// selection lists read from [manager].
package finder

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/sable-labs/katana/config"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// Constructor builds a new Unit instance bound to t, able to call back
// into mgr. Registered once per unit name at program startup (typically
// from an init() in the owning units/ package), mirroring how the
// original katana discovers unit subclasses via Python's class registry.
type Constructor func(t *target.Target, mgr unit.Registrar) unit.Unit

var registry = map[string]Constructor{}

// Register adds name to the global constructor registry. Panics on a
// duplicate name, since two units sharing a name is always a programming
// error caught at init time, never a runtime condition to recover from.
func Register(name string, ctor Constructor) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("finder: unit %q already registered", name))
	}
	registry[name] = ctor
}

// entry is one unit's manifest row. Priority, StrictFlags, and
// ProtectedRecurse are not declared here — they are properties of the
// concrete Unit implementation itself (its Priority/StrictFlags/
// ProtectedRecurse methods), exactly as in the original where they are
// attributes on the unit subclass rather than external registry metadata.
// The manifest's only job is naming which units exist and when each one
// is a candidate.
type entry struct {
	Name string `yaml:"name"`
	// Match is a regex tested against the Target's payload. Absent or
	// empty means "always applicable" (a catch-all unit).
	Match string `yaml:"match,omitempty"`

	compiled *regexp.Regexp
}

// Manifest is the parsed contents of a units.yaml file.
type Manifest struct {
	Units []entry `yaml:"units"`
}

// LoadManifest reads and compiles a units.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("finder: read manifest %q: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("finder: parse manifest %q: %w", path, err)
	}
	for i := range m.Units {
		if m.Units[i].Match == "" {
			continue
		}
		re, err := regexp.Compile(m.Units[i].Match)
		if err != nil {
			return nil, fmt.Errorf("finder: unit %q: invalid match pattern: %w", m.Units[i].Name, err)
		}
		m.Units[i].compiled = re
	}
	return &m, nil
}

// Finder matches Targets against a Manifest's entries, honoring the
// [manager] unit/exclude selection lists.
type Finder struct {
	manifest *Manifest
	cfg      *config.Config
	mgr      unit.Registrar
}

// New builds a Finder. mgr is injected into every constructed Unit so it
// can call RegisterArtifact/RegisterData/RegisterFlag/Queue.
func New(manifest *Manifest, cfg *config.Config, mgr unit.Registrar) *Finder {
	return &Finder{manifest: manifest, cfg: cfg, mgr: mgr}
}

// Validate checks that every manifest entry resolves to a registered
// Constructor, and that every name in the [manager] "unit" selection
// list (if non-empty) is itself a known manifest entry.
func (f *Finder) Validate() error {
	known := make(map[string]bool, len(f.manifest.Units))
	for _, e := range f.manifest.Units {
		known[e.Name] = true
		if _, ok := registry[e.Name]; !ok {
			return fmt.Errorf("finder: manifest entry %q has no registered constructor", e.Name)
		}
	}
	for _, name := range f.cfg.GetList(config.ManagerSection, "unit") {
		if !known[name] {
			return fmt.Errorf("finder: configured unit %q is not in the manifest", name)
		}
	}
	return nil
}

// Match returns every Unit applicable to t: selected by the [manager]
// "unit"/"exclude" lists (an empty "unit" list means "all manifest
// entries are candidates") and whose Match pattern (if any) matches
// t.Payload. Returned in manifest declaration order; the WorkQueue, not
// this ordering, is the actual scheduling arbiter.
func (f *Finder) Match(t *target.Target) ([]unit.Unit, error) {
	selected := selectionSet(f.cfg.GetList(config.ManagerSection, "unit"))
	excluded := selectionSet(f.cfg.GetList(config.ManagerSection, "exclude"))

	var candidates []entry
	for _, e := range f.manifest.Units {
		if len(selected) > 0 && !selected[e.Name] {
			continue
		}
		if excluded[e.Name] {
			continue
		}
		if e.compiled != nil && !e.compiled.Match(t.Payload) {
			continue
		}
		candidates = append(candidates, e)
	}

	units := make([]unit.Unit, 0, len(candidates))
	for _, e := range candidates {
		ctor, ok := registry[e.Name]
		if !ok {
			return nil, fmt.Errorf("finder: unit %q has no registered constructor", e.Name)
		}
		units = append(units, ctor(t, f.mgr))
	}
	return units, nil
}

func selectionSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

var _ unit.Finder = (*Finder)(nil)
