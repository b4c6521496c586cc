package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// UnitSet owns the source units of one analysis session. Units are keyed by
// normalized path; re-adding a path replaces the previous revision under the
// same ID, so spans held by a caller stay attached to the newest text.
type UnitSet struct {
	units   []*Unit
	index   map[string]UnitID
	baseDir string
}

// NewUnitSet creates an empty set.
func NewUnitSet() *UnitSet {
	return &UnitSet{
		units: make([]*Unit, 0, 8),
		index: make(map[string]UnitID, 8),
	}
}

// NewUnitSetWithBase creates an empty set with a base directory used for
// relative path formatting.
func NewUnitSetWithBase(baseDir string) *UnitSet {
	s := NewUnitSet()
	s.baseDir = normalizePath(baseDir)
	return s
}

// SetBaseDir sets the directory relative paths are formatted against.
func (s *UnitSet) SetBaseDir(dir string) { s.baseDir = normalizePath(dir) }

// BaseDir returns the configured base directory.
func (s *UnitSet) BaseDir() string { return s.baseDir }

// Load reads a file from disk, normalizes it and adds it to the set.
func (s *UnitSet) Load(path string) (UnitID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NoUnit, fmt.Errorf("read %s: %w", path, err)
	}
	content, flags, err := Normalize(raw)
	if err != nil {
		return NoUnit, fmt.Errorf("decode %s: %w", path, err)
	}
	return s.add(path, content, flags)
}

// Add registers caller-supplied text under path. The text is normalized the
// same way Load normalizes disk content, then marked virtual so the fix
// engine never writes it back.
func (s *UnitSet) Add(path string, text []byte) (UnitID, error) {
	content, flags, err := Normalize(text)
	if err != nil {
		return NoUnit, fmt.Errorf("decode %s: %w", path, err)
	}
	return s.add(path, content, flags|UnitVirtual)
}

// AddVirtual is Add for tests and editor overlays; it panics on encoding
// errors, which caller-supplied UTF-8 cannot produce.
func (s *UnitSet) AddVirtual(path string, text []byte) UnitID {
	id, err := s.Add(path, text)
	if err != nil {
		panic(fmt.Errorf("source: add virtual %s: %w", path, err))
	}
	return id
}

func (s *UnitSet) add(path string, content []byte, flags UnitFlags) (UnitID, error) {
	norm := normalizePath(path)
	unit := &Unit{
		Path:    norm,
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
	}
	if id, ok := s.index[norm]; ok {
		unit.ID = id
		s.units[id-1] = unit
		return id, nil
	}
	next, err := safecast.Conv[uint32](len(s.units) + 1)
	if err != nil {
		return NoUnit, fmt.Errorf("unit id overflow: %w", err)
	}
	id := UnitID(next)
	unit.ID = id
	s.units = append(s.units, unit)
	s.index[norm] = id
	return id, nil
}

// Get returns the unit for id, or nil when the id is unknown.
func (s *UnitSet) Get(id UnitID) *Unit {
	if s == nil || id == NoUnit || int(id) > len(s.units) {
		return nil
	}
	return s.units[id-1]
}

// Lookup returns the unit registered under path, if any.
func (s *UnitSet) Lookup(path string) (*Unit, bool) {
	id, ok := s.index[normalizePath(path)]
	if !ok {
		return nil, false
	}
	return s.units[id-1], true
}

// Len reports the number of units in the set.
func (s *UnitSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.units)
}

// Resolve maps a span to its 1-based start and end positions.
func (s *UnitSet) Resolve(span Span) (start, end LineCol) {
	u := s.Get(span.Unit)
	if u == nil {
		return LineCol{}, LineCol{}
	}
	return u.Resolve(span.Start), u.Resolve(span.End)
}

// PathMode selects how FormatPath renders a unit path.
const (
	PathAbsolute = "absolute"
	PathRelative = "relative"
	PathBasename = "basename"
	PathAuto     = "auto"
)

// FormatPath renders the unit's path in the requested mode. Auto keeps
// short paths as-is and falls back to the basename for long absolute ones.
func (u *Unit) FormatPath(mode, baseDir string) string {
	switch mode {
	case PathAbsolute:
		if abs, err := filepath.Abs(filepath.FromSlash(u.Path)); err == nil {
			return filepath.ToSlash(abs)
		}
		return u.Path
	case PathRelative:
		if baseDir != "" {
			if rel, err := filepath.Rel(filepath.FromSlash(baseDir), filepath.FromSlash(u.Path)); err == nil {
				return filepath.ToSlash(rel)
			}
		}
		return u.Path
	case PathBasename:
		return filepath.Base(filepath.FromSlash(u.Path))
	default:
		if len(u.Path) > 40 && filepath.IsAbs(filepath.FromSlash(u.Path)) {
			return filepath.Base(filepath.FromSlash(u.Path))
		}
		return u.Path
	}
}
