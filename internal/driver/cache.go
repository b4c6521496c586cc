package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"failkit/internal/diag"
	"failkit/internal/rules"
	"failkit/internal/source"
)

// Current record format version - increment when scanRecord changes.
const cacheSchema uint16 = 1

// Cache stores raw scan output on disk keyed by unit content, so re-checking
// an unchanged tree skips the scanners entirely. It holds output as produced
// by scan.Run, before any policy is applied; disabled rules and severity
// overrides are re-applied on every load, which keeps cached entries valid
// across config edits. Thread-safe for concurrent access. A nil *Cache is a
// valid no-op cache.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// OpenCache initializes and returns a disk cache at the standard location
// ($XDG_CACHE_HOME/app, falling back to ~/.cache/app).
func OpenCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// OpenCacheAt initializes a disk cache rooted at an explicit directory.
func OpenCacheAt(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// cacheKey folds everything that invalidates a cached result: the unit
// content hash, the record format, the rule catalog revision and the
// proximity windows.
func cacheKey(contentHash [32]byte, w rules.Windows) [32]byte {
	h := sha256.New()
	_, _ = h.Write(contentHash[:])
	fmt.Fprintf(h, "schema=%d;rules=%d;w=%d,%d,%d",
		cacheSchema, rules.CatalogRevision, w.Receipt, w.Error, w.Resilience)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func (c *Cache) pathFor(key [32]byte) string {
	// Subdirectory "scan" keeps record files separate from any future
	// artifact kinds under the same cache root.
	return filepath.Join(c.dir, "scan", hex.EncodeToString(key[:])+".mp")
}

// scanRecord is the serialized projection of one unit's raw scan output.
// Fixes are not stored: their thunks close over live state, so they are
// re-derived from the issue after load. Spans store offsets only; the unit
// id is rewritten to the loading set's id.
type scanRecord struct {
	Schema uint16
	Issues []cachedIssue
}

type cachedIssue struct {
	Severity uint8
	Code     uint16
	Message  string
	Start    uint32
	End      uint32
	Dialect  string
	Pattern  string
	Notes    []cachedNote
	Meta     map[string]string
}

type cachedNote struct {
	Start uint32
	End   uint32
	Msg   string
}

func toCached(issues []*diag.Issue) []cachedIssue {
	out := make([]cachedIssue, len(issues))
	for i, iss := range issues {
		rec := cachedIssue{
			Severity: uint8(iss.Severity),
			Code:     uint16(iss.Code),
			Message:  iss.Message,
			Start:    iss.Primary.Start,
			End:      iss.Primary.End,
			Dialect:  iss.Dialect,
			Pattern:  iss.Pattern,
			Meta:     iss.Meta,
		}
		if len(iss.Notes) > 0 {
			rec.Notes = make([]cachedNote, len(iss.Notes))
			for j, n := range iss.Notes {
				rec.Notes[j] = cachedNote{Start: n.Span.Start, End: n.Span.End, Msg: n.Msg}
			}
		}
		out[i] = rec
	}
	return out
}

func fromCached(u *source.Unit, recs []cachedIssue) []*diag.Issue {
	issues := make([]*diag.Issue, len(recs))
	for i, rec := range recs {
		iss := diag.New(
			diag.Severity(rec.Severity),
			diag.Code(rec.Code),
			source.NewSpan(u.ID, rec.Start, rec.End),
			rec.Message,
		)
		if rec.Dialect != "" {
			iss.WithDialect(rec.Dialect)
		}
		if rec.Pattern != "" {
			iss.WithPattern(rec.Pattern)
		}
		for _, n := range rec.Notes {
			iss.AddNote(source.NewSpan(u.ID, n.Start, n.End), n.Msg)
		}
		for k, v := range rec.Meta {
			iss.WithMeta(k, v)
		}
		issues[i] = iss
	}
	return issues
}

// Get looks up the raw scan output for a unit. A miss (or a record written
// by an older format) returns ok=false with no error.
func (c *Cache) Get(u *source.Unit, w rules.Windows) ([]*diag.Issue, bool, error) {
	if c == nil || u == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(cacheKey(u.Hash, w)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	var rec scanRecord
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, false, err
	}
	if rec.Schema != cacheSchema {
		return nil, false, nil
	}
	return fromCached(u, rec.Issues), true, nil
}

// Put serializes raw scan output for a unit. The write is atomic: a rename
// over the final path, so concurrent readers see either the old record or
// the new one.
func (c *Cache) Put(u *source.Unit, w rules.Windows, issues []*diag.Issue) error {
	if c == nil || u == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(cacheKey(u.Hash, w))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	rec := scanRecord{Schema: cacheSchema, Issues: toCached(issues)}
	if err := msgpack.NewEncoder(f).Encode(&rec); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), p)
}

// DropAll invalidates the cache, useful after upgrades or corrupt state.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
