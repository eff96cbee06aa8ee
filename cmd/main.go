// Autoclicker - background auto clicker toggled by a global hotkey
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"autoclicker/internal/api"
	"autoclicker/internal/autostart"
	"autoclicker/internal/config"
	"autoclicker/internal/control"
	"autoclicker/internal/hook"
	"autoclicker/internal/hotkey"
	"autoclicker/internal/inject"
	"autoclicker/internal/input"
	"autoclicker/internal/logging"
	"autoclicker/internal/network"
	"autoclicker/internal/protocol"
	"autoclicker/internal/tray"
	"autoclicker/internal/ui"
)

var version = "0.1.0"

type options struct {
	configPath string
	hotkey     string
	delay      int
	button     string
	noTray     bool
	apiAddr    string
	token      string
	logLevel   string
	showVer    bool
	send       string
	watch      bool
	openUI     bool
	autostart  string
}

func bindFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to the config file (default: per-user config directory)")
	fs.StringVar(&o.hotkey, "hotkey", "", "Key that starts and stops clicking, e.g. F9")
	fs.IntVar(&o.delay, "delay", 0, "Delay between clicks in milliseconds")
	fs.StringVar(&o.button, "button", "", "Mouse button to click: left, right or middle")
	fs.BoolVar(&o.noTray, "no-tray", false, "Run without the system tray")
	fs.StringVar(&o.apiAddr, "api-addr", "", "Control server address, or \"off\" to disable it")
	fs.StringVar(&o.token, "token", "", "Bearer token for the control server")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&o.showVer, "version", false, "Show version")
	fs.StringVar(&o.send, "send", "", "Send a command (toggle, rebind, settings) to a running instance and exit")
	fs.BoolVar(&o.watch, "watch", false, "Print events from a running instance until interrupted; commands typed on stdin are forwarded to it")
	fs.BoolVar(&o.openUI, "ui", false, "Open the control page in the browser on startup")
	fs.StringVar(&o.autostart, "autostart", "", "Start at login: \"on\" or \"off\", then exit")
	return o
}

func main() {
	opts := bindFlags(flag.CommandLine)
	flag.Parse()

	if opts.showVer {
		fmt.Printf("autoclicker version %s\n", version)
		return
	}

	cfg, err := loadConfig(opts.configPath, flag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autoclicker: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.General.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autoclicker: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.autostart != "":
		runAutostart(opts.autostart, opts.configPath, logger)
	case opts.send != "":
		runSend(ctx, cfg, opts.send, logger)
	case opts.watch:
		runWatch(ctx, cfg, logger)
	default:
		runService(ctx, stop, cfg, opts.configPath, opts.openUI, logger)
	}
}

// loadConfig reads the config file and applies the flags set on fs
func loadConfig(path string, fs *flag.FlagSet) (config.Config, error) {
	var cfgMgr *config.Manager
	if path != "" {
		cfgMgr = config.NewManagerAt(path)
	} else {
		m, err := config.NewManager()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to initialize config: %w", err)
		}
		cfgMgr = m
	}
	if err := cfgMgr.Load(); err != nil {
		return config.Config{}, err
	}

	cfg, err := applyOverrides(cfgMgr.Get(), fs)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfgMgr.Set(cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfgMgr.Get(), nil
}

// applyOverrides copies every flag given on the command line into cfg
func applyOverrides(cfg config.Config, fs *flag.FlagSet) (config.Config, error) {
	var err error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "hotkey":
			cfg.Clicker.Hotkey = v
		case "delay":
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				err = fmt.Errorf("-delay: %w", convErr)
				return
			}
			if int64(n) > control.MaxDelayMillis {
				err = fmt.Errorf("-delay: %d ms is too large", n)
				return
			}
			cfg.Clicker.DelayMillis = n
		case "button":
			cfg.Clicker.Button = v
		case "no-tray":
			cfg.General.Tray = v != "true"
		case "api-addr":
			if v == "off" {
				cfg.API.Enabled = false
			} else {
				cfg.API.Enabled = true
				cfg.API.Addr = v
			}
		case "token":
			cfg.API.Token = v
		case "log-level":
			cfg.General.LogLevel = v
		}
	})
	return cfg, err
}

// panelURL returns the control page address for a listen address, with the
// token attached so the page can authenticate its requests
func panelURL(addr, token string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String()
}

func runService(ctx context.Context, cancel context.CancelFunc, cfg config.Config, configPath string, openUI bool, logger *zap.Logger) {
	log := logging.Component(logger, "main")
	log.Info("Autoclicker starting", zap.String("version", version))

	key, err := hotkey.ParseKey(cfg.Clicker.Hotkey)
	if err != nil {
		log.Fatal("Invalid hotkey", zap.Error(err))
	}
	button, err := input.ParseButton(cfg.Clicker.Button)
	if err != nil {
		log.Fatal("Invalid button", zap.Error(err))
	}

	panel, err := ui.NewPanel(control.RepeatSettings{Delay: cfg.Clicker.Delay(), Button: button})
	if err != nil {
		log.Fatal("Invalid click settings", zap.Error(err))
	}
	renderers := ui.Fanout{panel}

	var hub *api.Hub
	pageURL := ""
	if cfg.API.Enabled {
		hub = api.NewHub(panel, logging.Component(logger, "ws"))
		renderers = append(renderers, hub)
		pageURL = panelURL(cfg.API.Addr, cfg.API.Token)
	}

	var t *tray.Tray
	if cfg.General.Tray {
		t = tray.New(panel, pageURL, cancel, logging.Component(logger, "tray"))
		if launcher, err := autostart.New(); err == nil {
			t.SetAutostart(launcher, startupArgs(configPath)...)
		} else {
			log.Debug("Start at login unavailable", zap.Error(err))
		}
		renderers = append(renderers, t)
	}

	plane := control.New(control.Deps{
		Simulator:     inject.NewRobot(cfg.Clicker.Settle()),
		Settings:      panel,
		Renderer:      renderers,
		Logger:        logging.Component(logger, "control"),
		DefaultHotkey: key,
	})
	panel.Connect(plane)

	src := hook.NewSource(logging.Component(logger, "hook"))
	observer := hotkey.NewObserver(src, plane, logging.Component(logger, "hotkey"))
	if err := observer.Start(); err != nil {
		log.Fatal("Cannot observe global key events", zap.Error(err))
	}
	defer src.Close()

	planeDone := make(chan error, 1)
	go func() {
		planeDone <- plane.Run(ctx)
	}()

	if hub != nil {
		go hub.Run(ctx)
		server := api.NewServer(plane, panel, hub, cfg.API.Token, logging.Component(logger, "api"))
		go func() {
			if err := server.Start(ctx, cfg.API.Addr, nil); err != nil {
				log.Error("API server stopped", zap.Error(err))
				log.Warn("Autoclicker will continue running without the control server")
			}
		}()
		if openUI {
			if err := ui.OpenBrowser(pageURL); err != nil {
				log.Warn("Failed to open browser", zap.Error(err))
			}
		}
	}

	log.Info("Autoclicker running", zap.String("hotkey", string(key)))
	if t != nil {
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		t.Run()
		cancel()
	} else {
		<-ctx.Done()
	}

	log.Info("Shutting down...")
	select {
	case err := <-planeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Control plane stopped", zap.Error(err))
		}
	case <-time.After(5 * time.Second):
		log.Warn("Control plane did not stop in time")
	}
}

// command builds the message for a -send argument. settings takes its values
// from -delay and -button.
func command(name string, cfg config.Config) (protocol.Message, error) {
	switch protocol.MessageType(name) {
	case protocol.TypeToggle:
		return protocol.Message{Type: protocol.TypeToggle}, nil
	case protocol.TypeRebind:
		return protocol.Message{Type: protocol.TypeRebind}, nil
	case protocol.TypeSettings:
		return protocol.Message{
			Type: protocol.TypeSettings,
			Payload: protocol.SettingsPayload{
				Delay:  strconv.Itoa(cfg.Clicker.DelayMillis),
				Button: cfg.Clicker.Button,
			},
		}, nil
	}
	return protocol.Message{}, fmt.Errorf("unknown command %q (want toggle, rebind or settings)", name)
}

func runSend(ctx context.Context, cfg config.Config, name string, logger *zap.Logger) {
	log := logging.Component(logger, "client")

	msg, err := command(name, cfg)
	if err != nil {
		log.Fatal("Cannot send", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := network.NewClient(cfg.API.Addr, cfg.API.Token, log)
	status, err := client.Command(ctx, msg)
	if err != nil {
		log.Fatal("Command failed", zap.String("command", name), zap.Error(err))
	}

	state := "stopped"
	if status.Armed {
		state = "clicking"
	}
	fmt.Printf("State:  %s\n", state)
	fmt.Printf("Hotkey: %s\n", status.Hotkey)
	if status.AwaitingRebind {
		fmt.Println("        (waiting for a key press)")
	}
	fmt.Printf("Delay:  %d ms\n", status.DelayMillis)
	fmt.Printf("Button: %s\n", status.Button)
}

func runWatch(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	log := logging.Component(logger, "client")

	client := network.NewClient(cfg.API.Addr, cfg.API.Token, log)
	enc := json.NewEncoder(os.Stdout)
	client.OnMessage = func(msg protocol.Message) {
		enc.Encode(msg)
	}

	go forwardCommands(ctx, os.Stdin, client, cfg, log)

	if err := client.Run(ctx); err != nil {
		log.Fatal("Watch failed", zap.Error(err))
	}
}

// commandSender is the part of network.Client that -watch forwards input to
type commandSender interface {
	Send(msg protocol.Message) error
	IsConnected() bool
}

// forwardCommands reads one command name per line from r and queues it on
// client until r ends or ctx is cancelled
func forwardCommands(ctx context.Context, r io.Reader, client commandSender, cfg config.Config, log *zap.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}

		msg, err := command(name, cfg)
		if err != nil {
			log.Warn("Ignoring input", zap.Error(err))
			continue
		}
		if !client.IsConnected() {
			log.Info("Not connected, command queued", zap.String("command", name))
		}
		if err := client.Send(msg); err != nil {
			log.Warn("Command dropped", zap.Error(err))
		}
	}
}

// startupArgs are the flags a login item passes back to the clicker
func startupArgs(configPath string) []string {
	if configPath == "" {
		return nil
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	return []string{"-config", configPath}
}

func runAutostart(mode, configPath string, logger *zap.Logger) {
	log := logging.Component(logger, "autostart")

	launcher, err := autostart.New()
	if err != nil {
		log.Fatal("Start at login unavailable", zap.Error(err))
	}

	switch mode {
	case "on":
		err = launcher.Enable(startupArgs(configPath)...)
	case "off":
		err = launcher.Disable()
	default:
		log.Fatal("Invalid -autostart value, want on or off", zap.String("value", mode))
	}
	if err != nil {
		log.Fatal("Failed to change start at login", zap.Error(err))
	}
	fmt.Printf("Start at login: %s (%s)\n", mode, launcher.Path())
}
