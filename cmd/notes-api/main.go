package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/config"
	"github.com/pocketnotes/backend/internal/logging"
	"github.com/pocketnotes/backend/internal/server"
	"github.com/pocketnotes/backend/internal/storage"
)

const initTimeout = 15 * time.Second

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "notes-api",
		Short: "Notes backend service with a two-stage deletion lifecycle",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("backend", defaults.GetString("storage.backend"), "Storage backend (couchdb, mongodb)")
	cmd.PersistentFlags().String("backend-url", defaults.GetString("storage.url"), "Storage backend connection URL")
	cmd.PersistentFlags().String("database", defaults.GetString("storage.database"), "Database or collection namespace")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.backend", "backend")
	bindFlag(cmd, "storage.url", "backend-url")
	bindFlag(cmd, "storage.database", "database")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	backend, err := storage.ParseBackend(appConfig.Backend)
	if err != nil {
		return err
	}

	repository, cleanup, err := storage.New(storage.Config{
		Backend:  backend,
		URL:      appConfig.BackendURL,
		Database: appConfig.Database,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(closeCtx); err != nil {
			logger.Warn("storage cleanup failed", zap.Error(err))
		}
	}()

	initCtx, cancelInit := context.WithTimeout(ctx, initTimeout)
	defer cancelInit()
	if err := repository.Init(initCtx); err != nil {
		logger.Error("storage initialization failed",
			zap.String("backend", string(backend)),
			zap.Error(err))
		return err
	}
	logger.Info("storage initialized", zap.String("backend", string(backend)))

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Repository: repository,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
