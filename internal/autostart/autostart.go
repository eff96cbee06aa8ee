// Package autostart provides auto-start functionality.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.autoclicker.agent</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=Autoclicker
Comment=Background auto clicker
Exec="{{.ExecutablePath}}"{{range .Args}} {{.}}{{end}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

const windowsStartupScript = "@echo off\r\n" +
	`start "" "{{.ExecutablePath}}"{{range .Args}} {{.}}{{end}}` + "\r\n"

// Launcher manages the per-user login item that starts the clicker
type Launcher struct {
	path     string
	tmpl     *template.Template
	execPath string
}

// New returns the launcher for the current platform and executable
func New() (*Launcher, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return newLauncher(runtime.GOOS, home, os.Getenv("APPDATA"), os.Getenv("XDG_CONFIG_HOME"), execPath)
}

func newLauncher(goos, home, appData, xdgConfig, execPath string) (*Launcher, error) {
	var path, text string
	switch goos {
	case "darwin":
		path = filepath.Join(home, "Library", "LaunchAgents", "com.autoclicker.agent.plist")
		text = macLaunchAgentPlist
	case "windows":
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		path = filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup", "autoclicker.cmd")
		text = windowsStartupScript
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		path = filepath.Join(xdgConfig, "autostart", "autoclicker.desktop")
		text = xdgDesktopEntry
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}

	tmpl, err := template.New("autostart").Parse(text)
	if err != nil {
		return nil, err
	}
	return &Launcher{path: path, tmpl: tmpl, execPath: execPath}, nil
}

// Path returns the login item file
func (l *Launcher) Path() string {
	return l.path
}

// Enable writes the login item, passing args to the clicker on start
func (l *Launcher) Enable(args ...string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	data := struct {
		ExecutablePath string
		Args           []string
	}{l.execPath, args}
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return err
	}

	return os.WriteFile(l.path, buf.Bytes(), 0644)
}

// Disable removes the login item. Removing a missing item is not an error.
func (l *Launcher) Disable() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if the login item exists
func (l *Launcher) IsEnabled() bool {
	_, err := os.Stat(l.path)
	return err == nil
}
