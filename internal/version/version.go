// Package version identifies a clinicdash build and the data format it
// reads and writes. Backups carry a manifest so a restore can refuse an
// archive written by a newer format.
package version

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// DataFormat is bumped when record, goal or backup files change in a way
// older builds cannot read
const DataFormat = 1

// ManifestName is the backup archive entry holding the Manifest
const ManifestName = "clinicdash-manifest.json"

var ErrNewerFormat = errors.New("backup uses a newer data format")

// Set via -ldflags "-X clinicdash/internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info is the build reported by /api/health and `clinicctl version`
type Info struct {
	Version    string `json:"version"`
	BuildTime  string `json:"buildTime"`
	GoVersion  string `json:"goVersion,omitempty"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commitTime,omitempty"`
	Dirty      bool   `json:"dirty"`
	DataFormat int    `json:"dataFormat"`
}

// Get describes the running binary
func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuild(bi)
}

func fromBuild(bi *debug.BuildInfo) Info {
	info := Info{Version: Version, BuildTime: BuildTime, DataFormat: DataFormat}
	if bi == nil {
		return info
	}

	info.GoVersion = bi.GoVersion
	vcs := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		vcs[s.Key] = s.Value
	}
	info.Commit = vcs["vcs.revision"]
	info.CommitTime = vcs["vcs.time"]
	info.Dirty = vcs["vcs.modified"] == "true"
	return info
}

// ShortCommit is the abbreviated commit, suffixed when the tree was dirty
func (i Info) ShortCommit() string {
	c := i.Commit
	if len(c) > 8 {
		c = c[:8]
	}
	if c != "" && i.Dirty {
		c += "+dirty"
	}
	return c
}

// String renders the build on one line, e.g. "clinicdash dev (go1.25.0)"
func (i Info) String() string {
	parts := []string{"clinicdash " + i.Version}
	if c := i.ShortCommit(); c != "" {
		parts = append(parts, c)
	}
	if i.BuildTime != "unknown" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoVersion != "" {
		parts = append(parts, fmt.Sprintf("(%s)", i.GoVersion))
	}
	return strings.Join(parts, " ")
}

// Warning describes a build that cannot be traced to a commit, or ""
func (i Info) Warning() string {
	switch {
	case i.Dirty:
		return "built from a modified source tree"
	case i.Commit == "" && i.Version == "dev":
		return "development build without version control information"
	}
	return ""
}

// Manifest is written into every backup archive
type Manifest struct {
	Version    string    `json:"version"`
	DataFormat int       `json:"dataFormat"`
	CreatedAt  time.Time `json:"createdAt"`
	Records    int       `json:"records"`
}

// NewManifest describes a backup of records taken at t by this build
func NewManifest(t time.Time, records int) Manifest {
	return Manifest{Version: Version, DataFormat: DataFormat, CreatedAt: t, Records: records}
}

// Check rejects a manifest this build cannot restore. Archives from
// before manifests existed have format 0 and are accepted.
func (m Manifest) Check() error {
	if m.DataFormat > DataFormat {
		return fmt.Errorf("%w: %d (this build reads up to %d, written by %s)", ErrNewerFormat, m.DataFormat, DataFormat, m.Version)
	}
	return nil
}
