package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/wailsapp/wails/v3/pkg/application"

	"murmur/audiocapture"
	"murmur/config"
	"murmur/hotkey"
	"murmur/internal/app"
	"murmur/notify"
	"murmur/output"
	"murmur/stt"
	"murmur/tray"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// shutdownGrace bounds how long main waits for an in-flight transcription
// after Exit is chosen.
const shutdownGrace = 3 * time.Second

// claimer adapts the concrete Coordinator to the orchestrator's interface.
type claimer struct {
	coordinator *audiocapture.Coordinator
}

func (c claimer) Claim(selector string) (app.CaptureSession, error) {
	return c.coordinator.Claim(selector)
}

// buildEngine selects the transcription engine from configuration and
// returns it with its preflight check.
func buildEngine(cfg *config.Config) (stt.Engine, func() error, error) {
	if err := cfg.ValidateEngine(); err != nil {
		return nil, nil, err
	}

	switch cfg.Whisper.Engine {
	case config.EngineAPI:
		engine := stt.NewWhisperAPI(cfg.Whisper.APIKey, "")
		return engine, cfg.ValidateEngine, nil
	default:
		engine := stt.NewWhisperLocal(func() string { return cfg.Whisper.ModelPath }, "")
		// Model existence is checked per recording so a model installed
		// after startup is picked up without a restart.
		return engine, engine.Validate, nil
	}
}

func main() {
	slog.Info("starting murmur", "version", version, "commit", commit, "date", date)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	frames, err := tray.LoadFrames()
	if err != nil {
		slog.Error("load tray icons", "error", err)
		os.Exit(1)
	}

	engine, preflight, err := buildEngine(cfg)
	if err != nil {
		slog.Error("configure transcription engine", "error", err)
		os.Exit(1)
	}
	slog.Info("transcription engine ready", "engine", engine.Name())

	opener := audiocapture.NewPortAudioOpener()
	defer opener.Terminate()

	commands := make(chan tray.Command, 32)
	toggles := make(chan struct{}, 8)

	orchestrator := app.New(app.Config{
		Claimer:     claimer{coordinator: audiocapture.NewCoordinator(opener)},
		Transcriber: stt.NewTranscriber(engine),
		Output:      output.NewHandler(cfg.Behavior.AutoPaste),
		Notifier:    notify.Desktop{},
		Commands:    commands,
		Toggles:     toggles,
		Device:      cfg.Audio.Device,
		Preflight:   preflight,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		orchestrator.Run(ctx)
	}()

	listener := hotkey.NewListener(func() {
		select {
		case toggles <- struct{}{}:
		default:
			slog.Warn("toggle queue full, event dropped")
		}
	})
	listener.Start()
	defer listener.Stop()

	wailsApp := application.New(application.Options{
		Name:        "Murmur",
		Description: "Hotkey dictation to your clipboard",
		Mac: application.MacOptions{
			// Tray-resident: closing windows never quits the app.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetIcon(frames.Frames(tray.StateIdle)[0])

	trayMenu := wailsApp.NewMenu()
	statusItem := trayMenu.Add(frames.Tooltip(tray.StateIdle))
	statusItem.SetEnabled(false)
	trayMenu.AddSeparator()
	trayMenu.Add("Settings").OnClick(func(*application.Context) {
		url := cfg.ServerURL()
		if err := browser.OpenURL(url); err != nil {
			slog.Error("open settings page", "url", url, "error", err)
		}
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Exit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			cancel()
		})
	systemTray.SetMenu(trayMenu)

	driver := tray.NewDriver(frames, commands, func(icon []byte, tooltip string) {
		systemTray.SetIcon(icon)
		statusItem.SetLabel(tooltip)
	})

	go func() {
		driver.Run()

		// The driver exits after the orchestrator sends Shutdown; give any
		// in-flight work a bounded grace period, then quit the UI loop.
		select {
		case <-orchDone:
		case <-time.After(shutdownGrace):
			slog.Warn("orchestrator still busy at shutdown", "grace", shutdownGrace)
		}
		wailsApp.Quit()
	}()

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
		os.Exit(1)
	}
}
