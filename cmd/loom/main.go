package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"

	"github.com/ayusman/loom/internal/app"
	"github.com/ayusman/loom/internal/config"
	"github.com/ayusman/loom/internal/detector"
	"github.com/ayusman/loom/internal/logging"
	"github.com/ayusman/loom/internal/server"
	"github.com/ayusman/loom/internal/store"
	"github.com/ayusman/loom/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "loom:", err)
		os.Exit(1)
	}
}

type flags struct {
	config   string
	addr     string
	frames   int
	snapshot string
	noTray   bool
	logLevel string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "", "config file (.toml, .yaml or .json), reloaded on change")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides config)")
	flag.IntVar(&f.frames, "frames", 0, "render this many frames headless with a scripted hand, then exit")
	flag.StringVar(&f.snapshot, "snapshot", "loom.png", "PNG written after a headless run")
	flag.BoolVar(&f.noTray, "no-tray", false, "run without the system tray")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()
	return f
}

func run() error {
	f := parseFlags()

	cfg := config.Default()
	var warnings []string
	if f.config != "" {
		var err error
		if cfg, warnings, err = config.Load(f.config); err != nil {
			return err
		}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}

	logger := logging.New(cfg.LogLevel, "loom")
	logging.BridgeGG(logger)
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.frames > 0 {
		return runHeadless(ctx, cfg, f, logger)
	}
	return runInteractive(ctx, cfg, f, logger)
}

// runHeadless renders a fixed number of frames with a scripted hand and
// writes the final surface. No camera, detector or server is started.
func runHeadless(ctx context.Context, cfg config.Config, f flags, logger *log.Logger) error {
	a := app.New(app.Config{
		Settings: cfg,
		Detector: detector.NewMockDetector(),
		Logger:   logger,
	})
	defer a.Close()

	bar := progressbar.Default(int64(f.frames), "rendering")
	err := a.RenderScripted(ctx, f.frames, time.Second/time.Duration(cfg.RenderFPS), func(int) {
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return err
	}

	if err := a.SavePNG(f.snapshot); err != nil {
		return err
	}
	logger.Info("snapshot written", "path", f.snapshot, "frames", a.Frames())
	return nil
}

func runInteractive(ctx context.Context, cfg config.Config, f flags, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	// A config file wins over the last applied config.
	if f.config == "" {
		if saved, err := st.Settings().ActiveConfig(); err == nil {
			saved.Addr, saved.LogLevel = cfg.Addr, cfg.LogLevel
			cfg = saved
			logger.Info("restored last config")
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("could not restore last config", "err", err)
		}
	}

	a := app.New(app.Config{
		Settings: cfg,
		Store:    st,
		Logger:   logger,
	})
	defer a.Close()

	a.StartDetection(ctx)
	a.StartRender(ctx)

	if f.config != "" {
		w, err := config.NewWatcher(f.config, logger, func(c config.Config) {
			if err := a.ApplyConfig(c); err != nil {
				logger.Warn("reloaded config not saved", "err", err)
			}
		})
		if err != nil {
			logger.Warn("config watch disabled", "err", err)
		} else {
			go w.Run(ctx)
		}
	}

	srv := server.New(server.Config{
		Controller: a,
		Store:      st,
		StaticDir:  findWebDir(),
		Logger:     logger,
	})
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil {
			logger.Error("server stopped", "err", err)
			cancel()
		}
	}()

	if f.noTray {
		<-ctx.Done()
		return nil
	}
	runTray(ctx, cancel, a, viewerURL(cfg.Addr), logger)
	return nil
}

// runTray blocks in the tray's event loop until quit or ctx is done.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, url string, logger *log.Logger) {
	t := tray.New()
	t.OnToggle(func(enabled bool) {
		if enabled {
			a.StartDetection(ctx)
			logger.Info("detection on")
		} else {
			a.StopDetection()
			logger.Info("detection off")
		}
	})
	t.OnOpenViewer(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn("could not open browser", "url", url, "err", err)
		}
	})
	t.OnQuit(cancel)

	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-ticker.C:
				t.SetGesture(a.Hand().Gesture.String())
			}
		}
	}()
	t.Run()
}

func openStore(dataDir string) (*store.Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".loom")
	}
	return store.New(filepath.Join(dataDir, "loom.db"))
}

func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

// findWebDir returns the first existing web directory among "web",
// "../web" and ~/.loom/web, or "" if none exists.
func findWebDir() string {
	candidates := []string{"web", "../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".loom", "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
