package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{safeDir, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(safeDir, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "session.png"), false},
		{"nested new file", filepath.Join(safeDir, "plots", "night", "session.png"), false},
		{"dot-dot escape", filepath.Join(safeDir, "..", "outside", "x.png"), true},
		{"symlinked parent", filepath.Join(safeDir, "link", "x.png"), true},
		{"sibling prefix", safeDir + "-evil/x.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()

	if err := ValidateOutputPath(filepath.Join(dir, "session.png"), ".png"); err != nil {
		t.Errorf("expected temp dir png to be accepted: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(dir, "session.PNG"), ".png"); err != nil {
		t.Errorf("expected extension match to ignore case: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(dir, "session.sh"), ".png"); err == nil {
		t.Error("expected wrong extension to be rejected")
	}
	if err := ValidateOutputPath("session.png", ".png"); err != nil {
		t.Errorf("expected relative path in working directory to be accepted: %v", err)
	}
	if err := ValidateOutputPath("/proc/self/session.png"); err == nil {
		t.Error("expected a path outside cwd and temp to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                                     "unknown",
		"0f8fad5b-d9cb-469f-a165-70867728950e": "0f8fad5b-d9cb-469f-a165-70867728950e",
		"../../etc/passwd":                     "etc_passwd",
		"night drive #2":                       "night_drive_2",
		"___":                                  "unknown",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
