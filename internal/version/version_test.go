package version

import (
	"errors"
	"runtime/debug"
	"testing"
	"time"
)

func TestFromBuild(t *testing.T) {
	info := fromBuild(nil)
	if info.Version != Version || info.DataFormat != DataFormat || info.GoVersion != "" {
		t.Errorf("Unexpected info without build data: %+v", info)
	}

	info = fromBuild(&debug.BuildInfo{
		GoVersion: "go1.25.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-04-01T09:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "GOOS", Value: "linux"},
		},
	})
	if info.Commit != "0123456789abcdef" || info.CommitTime != "2024-04-01T09:00:00Z" || !info.Dirty {
		t.Errorf("VCS settings not read: %+v", info)
	}
	if info.GoVersion != "go1.25.0" {
		t.Errorf("Expected go1.25.0, got %q", info.GoVersion)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"dev", Info{Version: "dev", BuildTime: "unknown", GoVersion: "go1.25.0"}, "clinicdash dev (go1.25.0)"},
		{"release", Info{Version: "v1.2.0", BuildTime: "2024-04-01", GoVersion: "go1.25.0", Commit: "0123456789abcdef"},
			"clinicdash v1.2.0 01234567 built 2024-04-01 (go1.25.0)"},
		{"dirty", Info{Version: "v1.2.0", BuildTime: "unknown", Commit: "0123456789abcdef", Dirty: true},
			"clinicdash v1.2.0 01234567+dirty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWarning(t *testing.T) {
	if w := (Info{Version: "dev"}).Warning(); w == "" {
		t.Error("Expected a warning for a dev build")
	}
	if w := (Info{Version: "v1.0.0", Commit: "abc"}).Warning(); w != "" {
		t.Errorf("Unexpected warning %q", w)
	}
	if w := (Info{Version: "v1.0.0", Commit: "abc", Dirty: true}).Warning(); w == "" {
		t.Error("Expected a warning for a modified tree")
	}
}

func TestManifestCheck(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		manifest Manifest
		wantErr  bool
	}{
		{"current", NewManifest(now, 10), false},
		{"before manifests", Manifest{}, false},
		{"newer", Manifest{Version: "v9.0.0", DataFormat: DataFormat + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Check()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Check() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNewerFormat) {
				t.Errorf("Expected ErrNewerFormat, got %v", err)
			}
		})
	}
}
