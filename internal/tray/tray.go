// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
	"autoclicker/internal/ui"
)

// delayPresets are offered in the Delay submenu, in milliseconds
var delayPresets = []int{0, 10, 20, 50, 100, 250, 500, 1000}

var buttons = []input.Button{input.ButtonLeft, input.ButtonRight, input.ButtonMiddle}

// Autostart manages the login item behind "Start at login"
type Autostart interface {
	IsEnabled() bool
	Enable(args ...string) error
	Disable() error
}

// Tray shows the clicker state in the system tray and turns menu clicks into
// panel actions. It implements control.Renderer by re-reading the panel view,
// so it must come after the panel in a ui.Fanout.
type Tray struct {
	panel    *ui.Panel
	panelURL string
	onQuit   func()
	log      *zap.Logger

	autostart     Autostart
	autostartArgs []string

	mu      sync.Mutex
	ready   bool
	toggle  *systray.MenuItem
	hotkey  *systray.MenuItem
	buttons map[input.Button]*systray.MenuItem
	delays  map[int]*systray.MenuItem
	open    *systray.MenuItem
	login   *systray.MenuItem
	quit    *systray.MenuItem

	quitCh chan struct{}
}

// New creates a tray. panelURL is opened by "Open control panel" and may be
// empty; onQuit runs when the user picks Quit.
func New(panel *ui.Panel, panelURL string, onQuit func(), log *zap.Logger) *Tray {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tray{
		panel:    panel,
		panelURL: panelURL,
		onQuit:   onQuit,
		log:      log,
		buttons:  make(map[input.Button]*systray.MenuItem),
		delays:   make(map[int]*systray.MenuItem),
		quitCh:   make(chan struct{}),
	}
	panel.OnSettingsChange(func(control.RepeatSettings) { t.refresh() })
	return t
}

// SetAutostart adds a "Start at login" item backed by a. args are passed to
// the clicker when it is started at login. Must be called before Run.
func (t *Tray) SetAutostart(a Autostart, args ...string) {
	t.autostart = a
	t.autostartArgs = args
}

// Run starts the tray event loop (blocks). On macOS it must be called from
// the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) onExit() {
	close(t.quitCh)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTooltip("Autoclicker")

	t.mu.Lock()
	t.toggle = systray.AddMenuItem("Start clicking", "Arm or disarm the clicker")
	t.hotkey = systray.AddMenuItem("Hotkey: -", "Click, then press the new hotkey")
	systray.AddSeparator()

	mButton := systray.AddMenuItem("Button", "Mouse button to click")
	for _, b := range buttons {
		t.buttons[b] = mButton.AddSubMenuItemCheckbox(buttonTitle(b), "", false)
	}

	mDelay := systray.AddMenuItem("Delay", "Pause between clicks")
	for _, ms := range delayPresets {
		t.delays[ms] = mDelay.AddSubMenuItemCheckbox(delayTitle(ms), "", false)
	}
	systray.AddSeparator()

	if t.panelURL != "" {
		t.open = systray.AddMenuItem("Open control panel", t.panelURL)
	}
	if t.autostart != nil {
		t.login = systray.AddMenuItemCheckbox("Start at login", "Start the clicker when you log in", t.autostart.IsEnabled())
	}
	t.quit = systray.AddMenuItem("Quit", "Quit the clicker")
	t.ready = true
	t.mu.Unlock()

	t.onClick(t.toggle, t.panel.Toggle)
	t.onClick(t.hotkey, func() {
		t.panel.Rebind()
		t.refresh()
	})
	for b, item := range t.buttons {
		b := b
		t.onClick(item, func() {
			if err := t.panel.SetButton(b); err != nil {
				t.log.Warn("Button not changed", zap.Error(err))
			}
		})
	}
	for ms, item := range t.delays {
		d := time.Duration(ms) * time.Millisecond
		t.onClick(item, func() {
			if err := t.panel.SetDelay(d); err != nil {
				t.log.Warn("Delay not changed", zap.Error(err))
			}
		})
	}
	if t.open != nil {
		t.onClick(t.open, func() {
			if err := ui.OpenBrowser(t.panelURL); err != nil {
				t.log.Warn("Failed to open browser", zap.Error(err))
			}
		})
	}
	if t.login != nil {
		t.onClick(t.login, t.toggleAutostart)
	}
	t.onClick(t.quit, func() {
		if t.onQuit != nil {
			t.onQuit()
		}
	})

	t.refresh()
	t.log.Info("Tray ready")
}

func (t *Tray) toggleAutostart() {
	var err error
	if t.autostart.IsEnabled() {
		err = t.autostart.Disable()
	} else {
		err = t.autostart.Enable(t.autostartArgs...)
	}
	if err != nil {
		t.log.Warn("Start at login not changed", zap.Error(err))
	}

	t.mu.Lock()
	setChecked(t.login, t.autostart.IsEnabled())
	t.mu.Unlock()
}

// onClick handles clicks on item in its own goroutine until the tray exits
func (t *Tray) onClick(item *systray.MenuItem, fn func()) {
	go func() {
		for {
			select {
			case <-item.ClickedCh:
				fn()
			case <-t.quitCh:
				return
			}
		}
	}()
}

// refresh redraws everything from the panel view. Renders that arrive before
// the menu exists are picked up by the refresh at the end of setupMenu.
func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	v := t.panel.View()
	systray.SetTitle(title(v))
	systray.SetTooltip(tooltip(v))
	systray.SetIcon(icon(v.Armed))

	t.toggle.SetTitle(toggleTitle(v))
	t.hotkey.SetTitle(hotkeyTitle(v))
	for b, item := range t.buttons {
		setChecked(item, b == v.Button)
	}
	for ms, item := range t.delays {
		setChecked(item, ms == v.DelayMillis)
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// SetHotkeyLabel implements control.Renderer
func (t *Tray) SetHotkeyLabel(input.Key) {
	t.refresh()
}

// SetRunning implements control.Renderer
func (t *Tray) SetRunning(bool) {
	t.refresh()
}

// ShowNotice implements control.Renderer. The tray has no balloon support, so
// the notice goes to the tooltip until the next refresh.
func (t *Tray) ShowNotice(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		systray.SetTooltip("Autoclicker: " + msg)
	}
}

func title(v ui.View) string {
	if v.Armed {
		return "AC ●"
	}
	return "AC"
}

func tooltip(v ui.View) string {
	state := "stopped"
	if v.Armed {
		state = "clicking"
	}
	return fmt.Sprintf("Autoclicker: %s (%s every %d ms, hotkey %s)", state, v.Button, v.DelayMillis, hotkeyName(v))
}

func toggleTitle(v ui.View) string {
	if v.Armed {
		return "Stop clicking"
	}
	return "Start clicking"
}

func hotkeyTitle(v ui.View) string {
	if v.Capturing {
		return "Hotkey: press a key..."
	}
	return "Hotkey: " + hotkeyName(v)
}

func hotkeyName(v ui.View) string {
	if v.Hotkey == "" {
		return "-"
	}
	return string(v.Hotkey)
}

func buttonTitle(b input.Button) string {
	switch b {
	case input.ButtonLeft:
		return "Left"
	case input.ButtonRight:
		return "Right"
	case input.ButtonMiddle:
		return "Middle"
	}
	return string(b)
}

func delayTitle(ms int) string {
	if ms == 0 {
		return "No delay"
	}
	if ms >= 1000 && ms%1000 == 0 {
		return fmt.Sprintf("%d s", ms/1000)
	}
	return fmt.Sprintf("%d ms", ms)
}
