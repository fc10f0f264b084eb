package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VersionID identifies an index version of a partition.
type VersionID int32

// InvalidVersion denotes "no version" or an unknown base version.
const InvalidVersion VersionID = -1

// IsValid reports whether v names a real version.
func (v VersionID) IsValid() bool { return v >= 0 }

// String returns the decimal form of v.
func (v VersionID) String() string { return strconv.FormatInt(int64(v), 10) }

const (
	// VersionFilePrefix is the name prefix of version files and done markers.
	VersionFilePrefix = "version."
	// DoneSuffix is appended to a version file name to form its done marker.
	DoneSuffix = ".done"
)

// VersionFileName returns "version.<N>".
func VersionFileName(v VersionID) string {
	return VersionFilePrefix + v.String()
}

// DoneFileName returns "version.<N>.done".
func DoneFileName(v VersionID) string {
	return VersionFileName(v) + DoneSuffix
}

// ParseDoneFileName extracts N from a "version.<N>.done" name.
func ParseDoneFileName(name string) (VersionID, bool) {
	if !strings.HasPrefix(name, VersionFilePrefix) || !strings.HasSuffix(name, DoneSuffix) {
		return InvalidVersion, false
	}
	num := strings.TrimSuffix(strings.TrimPrefix(name, VersionFilePrefix), DoneSuffix)
	if num == "" {
		return InvalidVersion, false
	}
	n, err := strconv.ParseInt(num, 10, 32)
	if err != nil || n < 0 {
		return InvalidVersion, false
	}
	return VersionID(n), true
}

const (
	// UnknownLength marks a file whose size has not been probed yet.
	UnknownLength int64 = -1
	// UnknownModifyTime marks a file without a recorded modification time.
	UnknownModifyTime uint64 = math.MaxUint64
)

// FileEntry describes one file or directory marker of an index version.
type FileEntry struct {
	Path       string `json:"path"`
	Length     int64  `json:"file_length"`
	ModifyTime uint64 `json:"modify_time"`
}

// NewFileEntry creates an entry with an unknown modification time.
func NewFileEntry(path string, length int64) FileEntry {
	return FileEntry{Path: path, Length: length, ModifyTime: UnknownModifyTime}
}

// IsDir reports whether the entry is a directory marker.
func (e FileEntry) IsDir() bool {
	return strings.HasSuffix(e.Path, "/")
}

// IsValid reports whether the entry can be deployed as is.
// Directory markers are always valid; files need a known length.
func (e FileEntry) IsValid() bool {
	return e.IsDir() || e.Length >= 0
}

// String returns a compact representation of the entry.
func (e FileEntry) String() string {
	return fmt.Sprintf("%s(%d)", e.Path, e.Length)
}

// FileManifest lists the files of one deploy target root.
//
// Files are transferred first; FinalFiles are materialized only after the
// transfer of Files succeeded (e.g. the version file).
type FileManifest struct {
	Files      []FileEntry `json:"deploy_file_metas"`
	FinalFiles []FileEntry `json:"final_deploy_file_metas,omitempty"`
	Lifecycle  string      `json:"lifecycle,omitempty"`
}

// Equal reports whether m and o describe the same files in the same order.
func (m *FileManifest) Equal(o *FileManifest) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Lifecycle == o.Lifecycle &&
		equalEntries(m.Files, o.Files) &&
		equalEntries(m.FinalFiles, o.FinalFiles)
}

// Paths returns the paths of Files followed by FinalFiles.
func (m *FileManifest) Paths() []string {
	if m == nil {
		return nil
	}
	paths := make([]string, 0, len(m.Files)+len(m.FinalFiles))
	for _, f := range m.Files {
		paths = append(paths, f.Path)
	}
	for _, f := range m.FinalFiles {
		paths = append(paths, f.Path)
	}
	return paths
}

// TotalLength sums the known lengths of all entries.
func (m *FileManifest) TotalLength() int64 {
	if m == nil {
		return 0
	}
	var total int64
	for _, list := range [][]FileEntry{m.Files, m.FinalFiles} {
		for _, f := range list {
			if f.Length > 0 {
				total += f.Length
			}
		}
	}
	return total
}

func equalEntries(a, b []FileEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
