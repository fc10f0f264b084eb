package lifecycle

import (
	"encoding/json"
	"path"
	"sort"
	"strings"
)

// Table maps partition-relative directories to lifecycle tags.
//
// Keys are normalized directory paths ("segment_0_level_0/"). The partition
// root is never stored and implicitly carries the empty tag.
type Table struct {
	dirs map[string]string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{dirs: make(map[string]string)}
}

// AddDirectory tags dir, overwriting any previous tag.
// It returns false only if dir cannot be normalized.
func (t *Table) AddDirectory(dir, tag string) bool {
	key, ok := normalizeDir(dir)
	if !ok {
		return false
	}
	if key == "" {
		return true
	}
	if t.dirs == nil {
		t.dirs = make(map[string]string)
	}
	t.dirs[key] = tag
	return true
}

// RemoveDirectory erases the tag of dir if present.
func (t *Table) RemoveDirectory(dir string) {
	if key, ok := normalizeDir(dir); ok && key != "" {
		delete(t.dirs, key)
	}
}

// RemoveFile erases the entry stored under the file form of p if present.
func (t *Table) RemoveFile(p string) {
	if key, ok := normalizeFile(p); ok && key != "" {
		delete(t.dirs, key)
	}
}

// GetLifecycle returns the tag of the deepest registered directory containing p,
// or "" if no ancestor is registered.
func (t *Table) GetLifecycle(p string) string {
	if t == nil || len(t.dirs) == 0 {
		return ""
	}
	key, ok := normalizeFile(p)
	if !ok || key == "" {
		return ""
	}
	// Walk ancestors from the deepest one; the longest matching key is also the
	// lexicographically largest prefix of key.
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] != '/' {
			continue
		}
		if tag, ok := t.dirs[key[:i+1]]; ok {
			return tag
		}
	}
	return ""
}

// Len returns the number of registered directories.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.dirs)
}

// Equal reports whether both tables hold the same directory/tag pairs.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() {
		return false
	}
	for k, v := range t.entries() {
		if ov, ok := o.dirs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Entry is one serialized table row.
type Entry struct {
	Path      string `json:"path"`
	Lifecycle string `json:"lifecycle"`
}

// Entries returns the table rows ordered by path.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, t.Len())
	for k, v := range t.entries() {
		out = append(out, Entry{Path: k, Lifecycle: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *Table) entries() map[string]string {
	if t == nil {
		return nil
	}
	return t.dirs
}

// MarshalJSON encodes the table as an ordered list of {path, lifecycle}.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}

// UnmarshalJSON rebuilds the table from its list form.
func (t *Table) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	t.dirs = make(map[string]string, len(entries))
	for _, e := range entries {
		t.AddDirectory(e.Path, e.Lifecycle)
	}
	return nil
}

// normalizeDir returns the canonical directory key of p ("a/b/").
// The root normalizes to "".
func normalizeDir(p string) (string, bool) {
	clean, ok := cleanRelative(p)
	if !ok || clean == "" {
		return "", ok
	}
	return clean + "/", true
}

// normalizeFile returns the canonical form of p, keeping a trailing "/"
// for directory markers.
func normalizeFile(p string) (string, bool) {
	clean, ok := cleanRelative(p)
	if !ok || clean == "" {
		return "", ok
	}
	if strings.HasSuffix(p, "/") {
		clean += "/"
	}
	return clean, true
}

func cleanRelative(p string) (string, bool) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		// Absolute paths are taken relative to the partition root.
		p = strings.TrimLeft(p, "/")
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", true
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
