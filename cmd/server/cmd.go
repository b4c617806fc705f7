package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/NovaRelay/backend/internal/api/http"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/backend"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/server"
)

// flags override the loaded configuration when set.
type flags struct {
	configFile  string
	port        string
	host        string
	backendURL  string
	chatModel   string
	visionModel string
	dev         bool
	logLevel    string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "nova-relay",
		Short:         "Relay chat, image generation and vision requests to AI backends",
		Version:       apihttp.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "settings file (YAML), overrides "+config.FileEnvVar)
	pf.StringVar(&f.backendURL, "backend", "", "AI backend base URL")
	pf.StringVar(&f.chatModel, "chat-model", "", "default chat model")
	pf.StringVar(&f.visionModel, "vision-model", "", "default vision model")
	pf.BoolVar(&f.dev, "dev", false, "development logging (console, debug level)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	for _, c := range []*cobra.Command{root, serve} {
		c.Flags().StringVar(&f.port, "port", "", "HTTP listen port")
		c.Flags().StringVar(&f.host, "host", "", "HTTP listen host")
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and check the AI backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, f)
		},
	}

	root.AddCommand(serve, check)
	return root
}

// loadConfig layers flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configFile != "" {
		cfg, err = config.LoadFile(f.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	set := func(name string, dst *string, value string) {
		if cmd.Flags().Changed(name) {
			*dst = value
		}
	}
	set("port", &cfg.Server.Port, f.port)
	set("host", &cfg.Server.Host, f.host)
	set("backend", &cfg.Backend.URL, f.backendURL)
	set("chat-model", &cfg.Backend.ChatModel, f.chatModel)
	set("vision-model", &cfg.Backend.VisionModel, f.visionModel)
	set("log-level", &cfg.Logging.Level, f.logLevel)
	if cmd.Flags().Changed("dev") {
		cfg.Logging.Development = f.dev
		if f.dev && !cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runCheck(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config ok: backend %s, chat model %s, vision model %s\n",
		cfg.Backend.URL, cfg.Backend.ChatModel, cfg.Backend.VisionModel)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.ModelsTimeout+time.Second)
	defer cancel()

	client := backend.New(backend.OptionsFromConfig(cfg), logger, nil)
	models, err := client.ListChatModels(ctx)
	if err != nil {
		logger.Error("Backend check failed", zap.Error(err))
		return fmt.Errorf("backend unreachable: %w", err)
	}

	fmt.Fprintf(out, "backend ok: %d chat models\n", len(models))
	return nil
}
