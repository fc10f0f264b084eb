package description

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/model"
)

var (
	// ErrMalformed is returned for JSON-shaped content that cannot be decoded.
	ErrMalformed = errors.New("malformed deploy description")
	// ErrLegacyEdition is returned when an edition 0 document is compared by
	// manifest; such documents must be compared with the legacy rules.
	ErrLegacyEdition = errors.New("edition 0 description has no manifest")
)

// Edition versions the description schema.
type Edition int32

const (
	// EditionLegacy carries no manifest or lifecycle guarantees.
	EditionLegacy Edition = 0
	// EditionV1 records file manifests, lifecycle table and deploy time.
	EditionV1 Edition = 1

	// CurrentEdition is the edition of freshly built descriptions.
	CurrentEdition = EditionV1
)

// Feature names an edition-gated capability.
type Feature int

const (
	// FeatureManifestCheck compares file manifests and lifecycle tables.
	FeatureManifestCheck Feature = iota + 1
	// FeatureDeployTime records the deploy time.
	FeatureDeployTime
)

func (f Feature) String() string {
	switch f {
	case FeatureManifestCheck:
		return "manifest-check"
	case FeatureDeployTime:
		return "deploy-time"
	default:
		return fmt.Sprintf("Feature(%d)", int(f))
	}
}

// Description records the outcome of one deployment plan.
type Description struct {
	EditionID       Edition               `json:"edition_id"`
	DeployTime      int64                 `json:"deploy_time"`
	RawPath         string                `json:"raw_path"`
	RemotePath      string                `json:"remote_path"`
	ConfigPath      string                `json:"config_path"`
	LocalManifests  []*model.FileManifest `json:"local_deploy_index_metas"`
	RemoteManifests []*model.FileManifest `json:"remote_deploy_index_metas"`
	LifecycleTable  *lifecycle.Table      `json:"lifecycle_table"`
}

// New creates a description of the current edition.
func New(rawPath, remotePath, configPath string) *Description {
	return &Description{
		EditionID:  CurrentEdition,
		RawPath:    rawPath,
		RemotePath: remotePath,
		ConfigPath: configPath,
	}
}

// IsLegacy reports whether content is a legacy string marker.
func IsLegacy(content []byte) bool {
	return !bytes.HasPrefix(content, []byte("{"))
}

// LegacyForms returns the three historical legacy markers of d, oldest first.
func (d *Description) LegacyForms() []string {
	return []string{
		d.RemotePath,
		d.RawPath + ":" + d.RemotePath,
		d.RawPath + ":" + d.RemotePath + ":" + d.ConfigPath,
	}
}

// CheckDeployDoneLegacy reports whether content is any legacy form of expected.
func CheckDeployDoneLegacy(content []byte, expected *Description) bool {
	s := string(content)
	for _, form := range expected.LegacyForms() {
		if s == form {
			return true
		}
	}
	return false
}

// Deserialize decodes content. Legacy content yields an empty edition 0
// description and no error, whatever its shape. Malformed JSON yields
// ErrMalformed and no partial description.
func Deserialize(content []byte) (*Description, error) {
	if IsLegacy(content) {
		return &Description{EditionID: EditionLegacy}, nil
	}
	d := &Description{}
	if err := json.Unmarshal(content, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d, nil
}

// Marshal encodes d. Edition 0 descriptions are written in the newest legacy
// form so that peers speaking only the legacy protocol understand them.
func (d *Description) Marshal() ([]byte, error) {
	if d.EditionID == EditionLegacy {
		forms := d.LegacyForms()
		return []byte(forms[len(forms)-1]), nil
	}
	return json.Marshal(d)
}

// SupportsFeature reports whether the edition of d provides f.
func (d *Description) SupportsFeature(f Feature) bool {
	switch f {
	case FeatureManifestCheck, FeatureDeployTime:
		return d.EditionID >= EditionV1
	default:
		return false
	}
}

// DisableFeature drops d to edition 0, discarding manifest and lifecycle
// guarantees. Used while legacy peers still read the markers.
func (d *Description) DisableFeature(f Feature) {
	switch f {
	case FeatureManifestCheck, FeatureDeployTime:
		d.EditionID = EditionLegacy
	}
}

// CheckDeployDone reports whether content, the last written marker, records
// the same deployment as d.
//
// Legacy content is compared with the legacy rules. JSON content of edition 1
// must hold equal file manifests and an equal lifecycle table. An edition 0
// document returns ErrLegacyEdition; unknown editions are never done.
func (d *Description) CheckDeployDone(content []byte) (bool, error) {
	if IsLegacy(content) {
		return CheckDeployDoneLegacy(content, d), nil
	}
	last, err := Deserialize(content)
	if err != nil {
		return false, err
	}
	switch last.EditionID {
	case EditionLegacy:
		return false, ErrLegacyEdition
	case EditionV1:
		return EqualManifests(last.LocalManifests, d.LocalManifests) &&
			EqualManifests(last.RemoteManifests, d.RemoteManifests) &&
			last.LifecycleTable.Equal(d.LifecycleTable), nil
	default:
		return false, nil
	}
}

// EqualManifests reports whether a and b hold pairwise equal manifests.
// An absent (nil) entry only equals another absent entry.
func EqualManifests(a, b []*model.FileManifest) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if (a[i] == nil) != (b[i] == nil) {
			return false
		}
		if a[i] != nil && !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// LocalPaths returns the paths of every local manifest.
func (d *Description) LocalPaths() []string {
	var paths []string
	for _, m := range d.LocalManifests {
		paths = append(paths, m.Paths()...)
	}
	return paths
}

// Summary describes d for logs.
func (d *Description) Summary() string {
	var local, remote int
	for _, m := range d.LocalManifests {
		local += len(m.Paths())
	}
	for _, m := range d.RemoteManifests {
		remote += len(m.Paths())
	}
	return fmt.Sprintf("edition=%d local=%d remote=%d lifecycle=%d",
		d.EditionID, local, remote, d.LifecycleTable.Len())
}

// DiffLocal counts the local paths of d missing from base (added) and the
// local paths of base no longer in d (removed). A base without manifest
// support counts every path of d as added.
func (d *Description) DiffLocal(base *Description) (added, removed int) {
	old := make(map[string]struct{})
	if base != nil && base.SupportsFeature(FeatureManifestCheck) {
		for _, p := range base.LocalPaths() {
			old[p] = struct{}{}
		}
	}
	for _, p := range d.LocalPaths() {
		if _, ok := old[p]; ok {
			delete(old, p)
			continue
		}
		added++
	}
	return added, len(old)
}
