package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPaths(t *testing.T) {
	tests := []struct {
		goos, appData, xdg, want string
	}{
		{"darwin", "", "", filepath.Join("home", "Library", "LaunchAgents", "com.autoclicker.agent.plist")},
		{"windows", "appdata", "", filepath.Join("appdata", "Microsoft", "Windows", "Start Menu", "Programs", "Startup", "autoclicker.cmd")},
		{"windows", "", "", filepath.Join("home", "AppData", "Roaming", "Microsoft", "Windows", "Start Menu", "Programs", "Startup", "autoclicker.cmd")},
		{"linux", "", "", filepath.Join("home", ".config", "autostart", "autoclicker.desktop")},
		{"linux", "", "xdg", filepath.Join("xdg", "autostart", "autoclicker.desktop")},
	}

	for _, tt := range tests {
		l, err := newLauncher(tt.goos, "home", tt.appData, tt.xdg, "/bin/autoclicker")
		if err != nil {
			t.Fatalf("%s: %v", tt.goos, err)
		}
		if l.Path() != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.goos, tt.want, l.Path())
		}
	}

	if _, err := newLauncher("plan9", "home", "", "", "/bin/autoclicker"); err == nil {
		t.Error("Expected unsupported platform error")
	}
}

func TestEnableDisable(t *testing.T) {
	for _, goos := range []string{"darwin", "windows", "linux"} {
		dir := t.TempDir()
		l, err := newLauncher(goos, dir, "", "", "/opt/autoclicker")
		if err != nil {
			t.Fatal(err)
		}

		if l.IsEnabled() {
			t.Errorf("%s: expected disabled before Enable", goos)
		}
		if err := l.Enable("-no-tray"); err != nil {
			t.Fatalf("%s: Enable failed: %v", goos, err)
		}
		if !l.IsEnabled() {
			t.Errorf("%s: expected enabled after Enable", goos)
		}

		data, err := os.ReadFile(l.Path())
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"/opt/autoclicker", "-no-tray"} {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s: expected %q in login item:\n%s", goos, want, data)
			}
		}

		if err := l.Disable(); err != nil {
			t.Fatalf("%s: Disable failed: %v", goos, err)
		}
		if l.IsEnabled() {
			t.Errorf("%s: expected disabled after Disable", goos)
		}
		if err := l.Disable(); err != nil {
			t.Errorf("%s: second Disable failed: %v", goos, err)
		}
	}
}
