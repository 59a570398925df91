package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/indii/reelstudio/internal/api"
	"github.com/indii/reelstudio/internal/config"
	"github.com/indii/reelstudio/internal/db"
	"github.com/indii/reelstudio/internal/logging"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/studio"
	"github.com/indii/reelstudio/internal/ui"
)

func newServeCmd() *cobra.Command {
	var startScreen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local studio daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), startScreen)
		},
	}
	cmd.Flags().StringVar(&startScreen, "start-screen", "", "image src added as the start screen of new projects")
	return cmd
}

func serve(ctx context.Context, startScreen string) error {
	startTime := time.Now()

	tk, err := newToolkit()
	if err != nil {
		return err
	}
	cfg, logger := tk.cfg, tk.logger

	if err := ensureDir(cfg.DataDir()); err != nil {
		return err
	}
	if err := ensureDir(cfg.ExportDir()); err != nil {
		return err
	}
	logger.Info("starting reel studio", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := studio.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  REEL STUDIO v%-27s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Exports:    %-45s ║\n", logging.SanitizePath(cfg.ExportDir()))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if tk.probe != nil {
		probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
		if caps, err := tk.probe.Refresh(probeCtx); err != nil {
			logger.Warn("initial ffmpeg probe failed", "error", err)
		} else {
			logger.Info("ffmpeg capabilities detected",
				"version", caps.Version,
				"encoders", len(caps.Encoders),
				"muxers", len(caps.Muxers),
			)
		}
		probeCancel()
	}

	svc := studio.NewService(repo, studio.Options{
		Loader:      tk.loader,
		Decoder:     tk.decoder,
		StartScreen: startScreen,
		Style:       tk.style,
		Logger:      logging.WithComponent(logger, "studio"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := studio.NewRunner(svc, repo, tk.sequencer, nil, studio.RunnerConfig{
		OutputDir: cfg.ExportDir(),
		FrameRate: cfg.FrameRate(),
	}, logging.WithComponent(logger, "runner"))
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:          cfg.Port(),
		Version:       config.Version,
		Service:       svc,
		Repository:    repo,
		Runner:        runner,
		Negotiator:    tk.sequencer,
		Probe:         tk.probe,
		Files:         playback.NewFileServer(logger),
		Logger:        logger,
		StartTime:     startTime,
		DefaultFormat: cfg.ExportFormat(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	quitCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logging.WithComponent(logger, "tray"),
			OnOpenStudio: func() {
				logger.Info("studio url", "url", fmt.Sprintf("http://%s/", apiServer.Addr()))
			},
			OnQuit: func() {
				cancel()
			},
		})
		go tray.Watch(ctx)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(ctx context.Context, repo studio.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
