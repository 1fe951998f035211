package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"browserlens"
	"browserlens/internal/config"
	"browserlens/rodpage"
)

func main() {
	configPath := flag.String("config", "", "path to a BrowserLens config file (optional, overrides workspace config)")
	startURL := flag.String("url", "", "URL to navigate to before observing (overrides config demo.start_url)")
	interval := flag.Duration("interval", 2*time.Second, "time between observe() calls")
	noWorkspace := flag.Bool("no-workspace", false, "skip .browserlens/ workspace discovery")
	workspaceDir := flag.String("workspace-dir", "", "use this directory as workspace root instead of walking up from cwd")
	initWorkspace := flag.Bool("init-workspace", false, "create a .browserlens/ workspace in the current directory and exit")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *initWorkspace {
		cwd, err := filepath.Abs(".")
		if err != nil {
			logger.Fatal("failed to resolve current directory", zap.Error(err))
		}
		if err := config.InitWorkspace(cwd); err != nil {
			logger.Fatal("failed to init workspace", zap.Error(err))
		}
		fmt.Printf("initialized workspace at %s\n", filepath.Join(cwd, config.WorkspaceDirName))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	full, wsDir, err := config.LoadWithWorkspace(*configPath, config.WorkspaceOptions{
		Disable:     *noWorkspace,
		ExplicitDir: *workspaceDir,
	})
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if wsDir != "" {
		logger.Info("using workspace config", zap.String("dir", wsDir))
	}

	controlURL, err := connectChrome(full.Demo)
	if err != nil {
		logger.Fatal("failed to connect to chrome", zap.Error(err))
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		logger.Fatal("failed to connect rod client", zap.Error(err))
	}
	defer browser.Close()

	navTo := *startURL
	if navTo == "" {
		navTo = full.Demo.StartURL
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: navTo})
	if err != nil {
		logger.Fatal("failed to open page", zap.Error(err))
	}
	page = page.Context(ctx).Timeout(full.Demo.NavigationTimeoutDuration())

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             full.Demo.GetViewportWidth(),
		Height:            full.Demo.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn("failed to set viewport", zap.Error(err))
	}

	if navTo != "" {
		page.MustWaitLoad()
	}

	handle := rodpage.New(page)

	cfg := browserlens.Config{Router: full.Router, Limits: full.Limits, Tracing: full.Tracing}
	session, err := browserlens.CreateSession(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create session", zap.Error(err))
	}
	defer session.Close()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			obs, err := session.Observe(ctx, handle, browserlens.ObserveOptions{})
			if err != nil {
				logger.Warn("observe failed", zap.Error(err))
				continue
			}
			printObservation(obs)
		}
	}
}

func printObservation(obs browserlens.Observation) {
	switch obs.Kind {
	case browserlens.KindFull:
		fmt.Printf("[full] representation=%s nodes=%d refs=%d\n", obs.Representation, obs.Tree.Count(), len(obs.Refs))
	case browserlens.KindDelta:
		d := obs.Delta
		fmt.Printf("[delta] representation=%s added=%d removed=%d changed=%d moved=%d cause=%s\n",
			obs.Representation, len(d.Added), len(d.Removed), len(d.Changed), len(d.Moved), obs.CauseHint)
	}
}

// connectChrome attaches to an already-running debugger endpoint if one is
// configured, else launches Chrome with Rod's launcher.
func connectChrome(demo config.DemoConfig) (string, error) {
	if demo.DebuggerURL != "" {
		return demo.DebuggerURL, nil
	}
	if len(demo.Launch) == 0 {
		return "", fmt.Errorf("no debugger_url or launch command configured")
	}

	bin := demo.Launch[0]
	l := launcher.New().Bin(bin).Headless(demo.IsHeadless())
	for _, rawFlag := range demo.Launch[1:] {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	url, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	return url, nil
}
