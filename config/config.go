// Package config implements an INI-style, section-scoped configuration
// bag with DEFAULT-section fallback, matching Python's configparser
// semantics (the behavior spec.md §6 and the original katana manager.py
// depend on). No library in the example corpus parses this format —
// gopkg.in/ini.v1 and friends never appear in any pack go.mod, so this
// package is hand-rolled against bufio.Scanner rather than the stdlib
// encoding/* packages, which have no INI support at all.
package config

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultSection is the name configparser reserves for fallback values.
const DefaultSection = "DEFAULT"

// ManagerSection is the section the core scheduler reads its own tuning
// knobs from.
const ManagerSection = "manager"

// Config is a named option bag: a DEFAULT section plus zero or more named
// sections. Lookups in a named section fall back to DEFAULT when the key
// is absent locally, exactly like configparser.
type Config struct {
	sections map[string]map[string]string
}

// New returns a Config seeded with the same DEFAULT values the original
// katana Manager constructor seeds.
func New() *Config {
	c := &Config{sections: map[string]map[string]string{
		DefaultSection: {
			"threads":        strconv.Itoa(schedulableCPUs()),
			"outdir":         "./results",
			"auto":           "false",
			"recurse":        "true",
			"exclude":        "",
			"min-data":       "10",
			"download":       "false",
			"template":       "default",
			"timeout":        "0.1",
			"password":       "",
			"prioritize":     "true",
			"default-units":  "true",
			"max-depth":      "10",
		},
		ManagerSection: {},
	}}
	return c
}

func schedulableCPUs() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Load reads an INI file into a fresh Config (seeded with the same
// defaults New returns, which Load's file contents may override).
// Returns an error if the file cannot be read or contains malformed
// lines; a missing file is a caller error, not silently ignored.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	c := New()
	if err := c.parse(f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) parse(f *os.File) error {
	scanner := bufio.NewScanner(f)
	current := DefaultSection
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				return fmt.Errorf("line %d: empty section header", lineNo)
			}
			current = name
			if _, ok := c.sections[current]; !ok {
				c.sections[current] = make(map[string]string)
			}
			continue
		}

		key, value, ok := splitKV(line)
		if !ok {
			return fmt.Errorf("line %d: expected key = value, got %q", lineNo, line)
		}
		if _, ok := c.sections[current]; !ok {
			c.sections[current] = make(map[string]string)
		}
		c.sections[current][strings.ToLower(key)] = value
	}
	return scanner.Err()
}

// splitKV splits "key = value" or "key: value" into (key, value, true).
func splitKV(line string) (string, string, bool) {
	idx := strings.IndexAny(line, "=:")
	if idx < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// Set writes a value directly into section (creating it if needed),
// bypassing file parsing. Used by callers building a Config
// programmatically (e.g. tests, or CLI flag overrides).
func (c *Config) Set(section, key, value string) {
	if _, ok := c.sections[section]; !ok {
		c.sections[section] = make(map[string]string)
	}
	c.sections[section][strings.ToLower(key)] = value
}

// Has reports whether key is present in section or in DEFAULT.
func (c *Config) Has(section, key string) bool {
	_, ok := c.lookup(section, key)
	return ok
}

func (c *Config) lookup(section, key string) (string, bool) {
	key = strings.ToLower(key)
	if sec, ok := c.sections[section]; ok {
		if v, ok := sec[key]; ok {
			return v, true
		}
	}
	if sec, ok := c.sections[DefaultSection]; ok {
		if v, ok := sec[key]; ok {
			return v, true
		}
	}
	return "", false
}

// GetString returns the string value of key in section, falling back to
// DEFAULT, or fallback if neither defines it.
func (c *Config) GetString(section, key, fallback string) string {
	if v, ok := c.lookup(section, key); ok {
		return v
	}
	return fallback
}

// GetInt parses key as an integer. Returns fallback if the key is absent;
// returns an error if present but not a valid integer.
func (c *Config) GetInt(section, key string, fallback int) (int, error) {
	v, ok := c.lookup(section, key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s.%s: invalid integer %q: %w", section, key, v, err)
	}
	return n, nil
}

// GetBool parses key as a configparser-style boolean (true/false/yes/no/
// 1/0/on/off, case-insensitive).
func (c *Config) GetBool(section, key string, fallback bool) (bool, error) {
	v, ok := c.lookup(section, key)
	if !ok || v == "" {
		return fallback, nil
	}
	switch strings.ToLower(v) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("config: %s.%s: invalid boolean %q", section, key, v)
	}
}

// GetFloat parses key as a float64.
func (c *Config) GetFloat(section, key string, fallback float64) (float64, error) {
	v, ok := c.lookup(section, key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s.%s: invalid float %q: %w", section, key, v, err)
	}
	return n, nil
}

// GetDuration parses key as seconds (a float, per spec.md §4.1's
// "float seconds" timeout) and returns it as a time.Duration.
func (c *Config) GetDuration(section, key string, fallback time.Duration) (time.Duration, error) {
	v, ok := c.lookup(section, key)
	if !ok || v == "" {
		return fallback, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s.%s: invalid duration %q: %w", section, key, v, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// GetList splits key on commas and newlines into a trimmed, non-empty
// string slice, matching configparser's common "one value per line or
// comma-separated" idiom for list-shaped options (unit, exclude,
// password).
func (c *Config) GetList(section, key string) []string {
	v, ok := c.lookup(section, key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Section returns a read-only copy of section's own keys (not merged with
// DEFAULT). Used by Finder/Unit configuration surfaces (e.g. [proxy],
// [monitor]) that need to enumerate arbitrary keys rather than look one
// up by name.
func (c *Config) Section(name string) map[string]string {
	sec, ok := c.sections[name]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(sec))
	for k, v := range sec {
		out[k] = v
	}
	return out
}

// SectionNames returns all section names except DEFAULT, in no
// particular order.
func (c *Config) SectionNames() []string {
	names := make([]string, 0, len(c.sections))
	for name := range c.sections {
		if name == DefaultSection {
			continue
		}
		names = append(names, name)
	}
	return names
}
