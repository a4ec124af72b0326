package engine

import (
	"bytes"
	"regexp"

	"github.com/sable-labs/katana/unit"
)

// xmlTagPattern matches katana.manager.py's "hack to remove XML from
// flags" (original: b'<[^<]+>'). Kept byte-for-byte identical to the
// original since some challenges hide the flag only once XML markup is
// stripped, and only "<[^<]+>" (no nested "<") matches what the original
// observed in practice.
var xmlTagPattern = regexp.MustCompile(`<[^<]+>`)

// findFlag implements spec.md §4.4. It never raises: textual data that
// isn't valid UTF-8 is still searched as raw bytes, which is simply what
// falls out of treating every input as []byte from the start.
func (m *Manager) findFlag(u unit.Unit, data any) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			m.findFlag(u, item)
		}
		return
	case [][]byte:
		for _, item := range v {
			m.findFlag(u, item)
		}
		return
	case []string:
		for _, item := range v {
			m.findFlag(u, item)
		}
		return
	}

	var b []byte
	switch v := data.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		// Not a searchable shape (e.g. a map or a number); nothing to do.
		return
	}

	m.searchBytes(u, b)
}

// searchBytes searches data for the compiled flag pattern, and — if
// stripping XML tags changes the data — recurses on the stripped form as
// well. Both forms are searched independently; a match in either fires
// register_flag.
func (m *Manager) searchBytes(u unit.Unit, data []byte) {
	noXML := xmlTagPattern.ReplaceAll(data, nil)
	if !bytes.Equal(noXML, data) {
		m.searchBytes(u, noXML)
	}
	m.matchAndRegister(u, data)
}

func (m *Manager) matchAndRegister(u unit.Unit, data []byte) {
	loc := m.flagPattern.FindIndex(data)
	if loc == nil {
		return
	}
	match := data[loc[0]:loc[1]]
	if !isPrintable(match) {
		return
	}

	if u.StrictFlags() {
		if loc[0] == 0 && loc[1] == len(data) {
			m.RegisterFlag(u, string(match))
		}
		return
	}

	m.RegisterFlag(u, string(match))
}

// isPrintable reports whether every byte is printable ASCII (0x20-0x7e)
// or common whitespace (tab, newline, carriage return).
func isPrintable(b []byte) bool {
	for _, c := range b {
		switch c {
		case '\t', '\n', '\r':
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
