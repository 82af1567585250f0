// Package aliases maps chat usernames to canonical display names,
// ignoring letter case. The chat transport preserves whatever casing a
// user typed, so the same person shows up as "Steve", "steve" or
// "STEVE" across sessions; the table collapses those to one identity.
package aliases

import (
	"unicode"
	"unicode/utf8"
)

// Table is a case-insensitive username → display name map. Get is
// called once per inbound chat message, so it must not allocate; Go's
// built-in map cannot be probed with a precomputed hash, so the table
// is a small open-addressed map keyed by a hash of the case-folded
// query. Read-only after construction, safe for concurrent readers.
type Table struct {
	entries []entry
	live    int
}

type entry struct {
	hash  uint64
	key   string
	value string
}

const minCapacity = 8

// New returns an empty table.
func New() *Table {
	return &Table{entries: make([]entry, minCapacity)}
}

// FromMap builds a table from a parsed alias blob. Keys that fold the
// same keep only the last value, matching Insert semantics; map
// iteration order makes the winner unspecified in that case.
func FromMap(m map[string]string) *Table {
	t := New()
	for k, v := range m {
		t.Insert(k, v)
	}
	return t
}

// Len reports the number of live entries, one per folded key.
func (t *Table) Len() int {
	return t.live
}

// Get returns the canonical display name for name, or name itself when
// no case-insensitively equal key was inserted. It never allocates:
// the query is hashed rune by rune through the case fold and probed
// directly, without building a folded copy.
func (t *Table) Get(name string) string {
	h := foldHash(name)
	mask := uint64(len(t.entries) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		e := &t.entries[i]
		if e.key == "" && e.value == "" {
			return name
		}
		if e.hash == h && equalFold(e.key, name) {
			return e.value
		}
	}
}

// Insert stores value under the case fold of key. A later insert whose
// key folds the same as an earlier one overwrites the earlier value.
func (t *Table) Insert(key, value string) {
	if key == "" && value == "" {
		// Indistinguishable from an empty slot, and Get("") already
		// returns "".
		return
	}
	if t.live*4 >= len(t.entries)*3 {
		t.grow()
	}
	h := foldHash(key)
	mask := uint64(len(t.entries) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		e := &t.entries[i]
		if e.key == "" && e.value == "" {
			*e = entry{hash: h, key: key, value: value}
			t.live++
			return
		}
		if e.hash == h && equalFold(e.key, key) {
			e.key = key
			e.value = value
			return
		}
	}
}

func (t *Table) grow() {
	old := t.entries
	t.entries = make([]entry, len(old)*2)
	mask := uint64(len(t.entries) - 1)
	for _, e := range old {
		if e.key == "" && e.value == "" {
			continue
		}
		for i := e.hash & mask; ; i = (i + 1) & mask {
			if t.entries[i].key == "" && t.entries[i].value == "" {
				t.entries[i] = e
				break
			}
		}
	}
}

// foldRune maps every casing variant of a rune to one representative.
// The round trip through ToUpper then ToLower collapses pairs like
// 'K'/'k' as well as oddballs such as the Kelvin sign.
func foldRune(r rune) rune {
	return unicode.ToLower(unicode.ToUpper(r))
}

// foldHash is FNV-1a over the UTF-8 encoding of the case-folded runes.
// It agrees with equalFold: strings that compare equal hash equal.
func foldHash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var buf [utf8.UTFMax]byte
	h := uint64(offset64)
	for _, r := range s {
		n := utf8.EncodeRune(buf[:], foldRune(r))
		for _, b := range buf[:n] {
			h ^= uint64(b)
			h *= prime64
		}
	}
	return h
}

// equalFold reports whether a and b are equal under foldRune. It uses
// the same fold as foldHash, which strings.EqualFold does not quite
// guarantee for the full Unicode fold orbit.
func equalFold(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if foldRune(ra) != foldRune(rb) {
			return false
		}
		a = a[na:]
		b = b[nb:]
	}
	return len(a) == 0 && len(b) == 0
}
