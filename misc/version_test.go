package misc

import "testing"

func TestBuildInfo(t *testing.T) {
	if GetAppName() != "extcss" {
		t.Errorf("GetAppName() = %q", GetAppName())
	}
	if GetVersion() == "" {
		t.Error("GetVersion() must never be empty")
	}
	if GetGitHash() == "" {
		t.Error("GetGitHash() must never be empty")
	}
}
