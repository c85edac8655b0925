package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/ambilight/cmd"
	"github.com/smazurov/ambilight/internal/api"
	"github.com/smazurov/ambilight/internal/audio"
	"github.com/smazurov/ambilight/internal/capture"
	"github.com/smazurov/ambilight/internal/config"
	"github.com/smazurov/ambilight/internal/devices"
	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/ffmpeg"
	"github.com/smazurov/ambilight/internal/led"
	"github.com/smazurov/ambilight/internal/ledstrip"
	"github.com/smazurov/ambilight/internal/logging"
	"github.com/smazurov/ambilight/internal/metrics"
	"github.com/smazurov/ambilight/internal/metrics/exporters"
	"github.com/smazurov/ambilight/internal/power"
	"github.com/smazurov/ambilight/internal/process"
	"github.com/smazurov/ambilight/internal/serial"
	"github.com/smazurov/ambilight/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin (empty = any)" default:"" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Strip settings
	StripSettingsFile string `help:"Persisted strip settings (mode, color, geometry)" default:"strip.toml" toml:"strip.settings_file" env:"STRIP_SETTINGS_FILE"`
	StripRetryDelay   string `help:"Delay before rendering restarts after a fault" default:"2s" toml:"strip.retry_delay" env:"STRIP_RETRY_DELAY"`

	// Serial settings
	SerialBaudRate     int    `help:"Serial baud rate" default:"115200" toml:"serial.baud_rate" env:"SERIAL_BAUD_RATE"`
	SerialWriteTimeout string `help:"Serial write timeout" default:"200ms" toml:"serial.write_timeout" env:"SERIAL_WRITE_TIMEOUT"`

	// Screen capture settings
	CaptureSource      string `help:"Screen source (ffmpeg, image)" default:"ffmpeg" toml:"capture.source" env:"CAPTURE_SOURCE"`
	CaptureInputFormat string `help:"FFmpeg input format (x11grab, kmsgrab, v4l2, lavfi)" default:"x11grab" toml:"capture.input_format" env:"CAPTURE_INPUT_FORMAT"`
	CaptureDevice      string `help:"FFmpeg input device" default:"" toml:"capture.device" env:"CAPTURE_DEVICE"`
	CaptureGrabSize    string `help:"Source size passed to the grabber" default:"" toml:"capture.grab_size" env:"CAPTURE_GRAB_SIZE"`
	CaptureFramerate   int    `help:"Grab rate in frames per second" default:"30" toml:"capture.framerate" env:"CAPTURE_FRAMERATE"`
	CaptureImage       string `help:"Still image used by the image source" default:"" toml:"capture.image" env:"CAPTURE_IMAGE"`

	// Audio settings
	AudioInputFormat string `help:"FFmpeg audio input format (pulse, alsa)" default:"pulse" toml:"audio.input_format" env:"AUDIO_INPUT_FORMAT"`
	AudioDevice      string `help:"Audio device to analyze" default:"default" toml:"audio.device" env:"AUDIO_DEVICE"`

	// systemd unit controlled through /api/system
	SystemServiceUnit string `help:"systemd unit the daemon runs as (empty disables /api/system)" default:"ambilight.service" toml:"system.service_unit" env:"SYSTEM_SERVICE_UNIT"`
	SystemSystemBus   bool   `help:"Use the system bus instead of the user bus" default:"false" toml:"system.system_bus" env:"SYSTEM_SYSTEM_BUS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl   bool   `help:"Show the link state on a board LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDName      string `help:"LED under /sys/class/leds to use (empty = detect board)" default:"" toml:"features.led_name" env:"FEATURES_LED_NAME"`
	FeaturesIdleInhibit  bool   `help:"Block screen blanking while in monitor mode" default:"true" toml:"features.idle_inhibit" env:"FEATURES_IDLE_INHIBIT"`
	FeaturesSSEStatsRate string `help:"Interval of strip-stats events" default:"1s" toml:"features.sse_stats_interval" env:"FEATURES_SSE_STATS_INTERVAL"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingLedstrip string `help:"Strip controller logging level" default:"info" toml:"logging.ledstrip" env:"LOGGING_LEDSTRIP"`
	LoggingSerial   string `help:"Serial transport logging level" default:"info" toml:"logging.serial" env:"LOGGING_SERIAL"`
	LoggingCapture  string `help:"Screen capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingAudio    string `help:"Audio analyzer logging level" default:"info" toml:"logging.audio" env:"LOGGING_AUDIO"`
	LoggingDevices  string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func parseDuration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func stripSettings(s config.StripSettings) ledstrip.Settings {
	return ledstrip.Settings{
		Mode:       s.Mode,
		Color:      s.Color,
		Brightness: s.Brightness,
		Device:     s.Device,
		Geometry:   s.Geometry,
	}
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"ledstrip": opts.LoggingLedstrip,
				"serial":   opts.LoggingSerial,
				"capture":  opts.LoggingCapture,
				"audio":    opts.LoggingAudio,
				"devices":  opts.LoggingDevices,
				"api":      opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetEntryCallback(func(e logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		})

		// Persisted strip settings
		store := config.NewStripStore(opts.StripSettingsFile)
		settings, loadErr := store.Load()
		if loadErr != nil {
			logger.Warn("Failed to load strip settings, using defaults", "file", store.Path(), "error", loadErr)
		}

		pool := process.NewPool(&process.PoolOptions{
			OnStateChange: func(id string, _, newState process.State, err error) {
				if !newState.Crashed() {
					err = nil
				}
				metrics.RecordHelperState(id, string(newState), err)
			},
			RestartDelay: 2 * time.Second,
			MaxRestarts:  5,
			Logger:       logging.GetLogger("process"),
		})

		// Screen source
		var screen ledstrip.Screen
		switch opts.CaptureSource {
		case "image":
			img, imgErr := capture.LoadImage(opts.CaptureImage)
			if imgErr != nil {
				logger.Error("Failed to load capture image", "image", opts.CaptureImage, "error", imgErr)
				os.Exit(1)
			}
			screen = capture.NewImageScreen(img, settings.Geometry.ScreenWidth, settings.Geometry.ScreenHeight,
				time.Second/time.Duration(max(opts.CaptureFramerate, 1)))
		default:
			screen = capture.NewFFmpegScreen(pool, capture.FFmpegOptions{
				Params: ffmpeg.ScreenParams{
					InputFormat: opts.CaptureInputFormat,
					Device:      opts.CaptureDevice,
					GrabSize:    opts.CaptureGrabSize,
					Framerate:   opts.CaptureFramerate,
					Width:       settings.Geometry.ScreenWidth,
					Height:      settings.Geometry.ScreenHeight,
					Options:     ffmpeg.GetDefaultOptions(),
				},
				Logger: logging.GetLogger("capture"),
			})
		}

		analyzer := audio.NewAnalyzer(pool, audio.Options{
			Params: ffmpeg.AudioParams{
				InputFormat: opts.AudioInputFormat,
				Device:      opts.AudioDevice,
				Options:     ffmpeg.GetDefaultOptions(),
			},
			Logger: logging.GetLogger("audio"),
		})

		port := serial.New(serial.Options{
			BaudRate:     opts.SerialBaudRate,
			WriteTimeout: parseDuration(logger, "serial.write_timeout", opts.SerialWriteTimeout, serial.DefaultWriteTimeout),
			Bus:          eventBus,
			Logger:       logging.GetLogger("serial"),
		})

		var powerHint ledstrip.PowerHint
		var inhibitor *power.Inhibitor
		if opts.FeaturesIdleInhibit {
			inhibitor = power.New(logging.GetLogger("power"))
			powerHint = inhibitor
		}

		controller, err := ledstrip.New(ledstrip.Options{
			Transport:  port,
			Screen:     screen,
			Audio:      analyzer,
			Power:      powerHint,
			Bus:        eventBus,
			Settings:   stripSettings(settings),
			Logger:     logging.GetLogger("ledstrip"),
			RetryDelay: parseDuration(logger, "strip.retry_delay", opts.StripRetryDelay, ledstrip.DefaultRetryDelay),
		})
		if err != nil {
			logger.Error("Failed to create strip controller", "error", err)
			os.Exit(1)
		}

		// Hot reload of the settings file. Saves made through the API come
		// back here unchanged and are ignored.
		watcher := config.NewConfigWatcher(store.Path(), config.LoadStripSettings, logging.GetLogger("config"),
			config.WithErrorHandler[config.StripSettings](func(err error) {
				logger.Warn("Ignoring invalid strip settings", "file", store.Path(), "error", err)
			}))
		watcher.OnReload(func(next config.StripSettings) {
			if next == store.Get() {
				return
			}
			logger.Info("Strip settings changed on disk, applying", "file", store.Path())
			store.Replace(next)
			if applyErr := controller.Apply(stripSettings(next)); applyErr != nil {
				logger.Error("Failed to apply reloaded strip settings", "error", applyErr)
			}
		})

		detector := devices.NewDetector()

		// Initialize LED control if enabled
		var ledManager *led.Manager
		if opts.FeaturesLEDControl {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(opts.FeaturesLEDName, ledLogger), eventBus, ledLogger)
		}

		sseExporter := exporters.NewSSEExporter(eventBus,
			parseDuration(logger, "features.sse_stats_interval", opts.FeaturesSSEStatsRate, time.Second))

		var service api.ServiceController
		if opts.SystemServiceUnit != "" {
			service = systemd.NewService(opts.SystemServiceUnit, opts.SystemSystemBus, logging.GetLogger("systemd"))
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CORSOrigin:        opts.CORSOrigin,
			Strip:             controller,
			Settings:          store,
			Ports:             detector,
			Service:           service,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if ledManager != nil {
				ledManager.Start()
			}
			sseExporter.Start(ctx)

			if startErr := detector.StartMonitoring(ctx, devices.NewBusBroadcaster(eventBus)); startErr != nil {
				logger.Warn("Serial hotplug monitoring unavailable", "error", startErr)
			}
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to watch strip settings", "file", store.Path(), "error", startErr)
			}
			if startErr := controller.Start(ctx); startErr != nil {
				logger.Error("Failed to start strip controller", "error", startErr)
				os.Exit(1)
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping settings watcher", "error", stopErr)
			}
			detector.StopMonitoring()

			// Blacks out the strip and releases the port
			controller.Stop()
			pool.StopAll()
			if closeErr := port.Close(); closeErr != nil {
				logger.Warn("Error closing serial port", "error", closeErr)
			}
			if inhibitor != nil {
				inhibitor.Close()
			}

			sseExporter.Stop()
			if ledManager != nil {
				ledManager.Stop()
			}
			cancel()
		})
	})

	settingsFile := "strip.toml"
	cli.Root().Use = "ambilight"
	cli.Root().Short = "Drive a serial LED strip from the screen, the audio output or a fixed color"
	cli.Root().AddCommand(
		cmd.CreatePortsCmd(),
		cmd.CreateValidateCmd(settingsFile),
		cmd.CreatePreviewCmd(settingsFile),
	)

	// Run the CLI
	cli.Run()
}
