package main

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	v := getVersion()
	if v == "" {
		t.Fatal("getVersion() returned empty string")
	}
	if !strings.HasPrefix(v, "dev") && !strings.HasPrefix(v, "v") {
		t.Errorf("getVersion() = %q, want 'dev...' or 'vX.Y.Z'", v)
	}
}

func TestGetVersion_LDFlags(t *testing.T) {
	old := version
	version = "v1.2.0"
	defer func() { version = old }()

	if got := getVersion(); got != "v1.2.0" {
		t.Errorf("getVersion() = %q, want v1.2.0", got)
	}
}

func TestDevVersion(t *testing.T) {
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"no vcs", nil, "dev"},
		{"revision", []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}}, "dev-0123456"},
		{"dirty", []debug.BuildSetting{
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.revision", Value: "0123456789abcdef"},
		}, "dev-0123456-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := devVersion(tt.settings); got != tt.want {
				t.Errorf("devVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}
