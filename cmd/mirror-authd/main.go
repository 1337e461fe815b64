// mirror-authd is the reference authentication service for GitLab Mirror
// clients. It issues login challenges, verifies client proofs and hands out
// session tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gitlab-mirror/mirrorauth/internal/api"
	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/internal/config"
	"github.com/gitlab-mirror/mirrorauth/internal/lifecycle"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
)

const defaultConfigPath = "/etc/mirror-authd/config.yaml"

var (
	// version is set by build flags
	version = "dev"
	// commit is set by build flags
	commit = "none"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mirror-authd version %s (%s)\n", version, commit)
		return
	}

	// Replaced once the configuration is loaded.
	logger := logging.New(logging.LevelInfo, logging.FormatJSON)

	if err := run(*configPath, logger); err != nil {
		logger.Error("service failed", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(configPath string, logger *logging.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger = logging.New(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))

	users, err := auth.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if users.Count() == 0 {
		logger.Warn("users file has no accounts, every login will fail", map[string]any{
			"users_file": cfg.Auth.UsersFile,
		})
	}

	logger.Info("mirror-authd starting", map[string]any{
		"version":        version,
		"commit":         commit,
		"log_level":      cfg.Logging.Level,
		"log_format":     cfg.Logging.Format,
		"listen_address": cfg.ListenAddress(),
		"tls":            cfg.TLSEnabled(),
		"users_file":     cfg.Auth.UsersFile,
		"users":          users.Count(),
		"challenge_ttl":  cfg.Auth.ChallengeTTL,
		"token_ttl":      cfg.Auth.TokenTTL,
	})

	authn := auth.NewAuthenticator(users, cfg.AuthOptions(), logger)
	defer authn.Stop()

	trusted, err := cfg.GetTrustedProxies()
	if err != nil {
		return err
	}
	router := api.NewRouter(authn, logger, version, api.WithTrustedProxies(trusted))

	server, err := api.New(cfg, router, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	shutdown := lifecycle.NewShutdownManager(func() {
		reloadUsers(users, cfg.Auth.UsersFile, logger)
	})
	ctx := shutdown.Start(context.Background())
	defer shutdown.Stop()

	logger.Info("server ready to accept connections")
	lifecycle.NotifySystemd(lifecycle.StateReady)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server failed: %w", err)
	}

	lifecycle.NotifySystemd(lifecycle.StateStopping)
	logger.Info("mirror-authd stopped", map[string]any{"reason": shutdown.Reason()})
	return nil
}

// reloadUsers re-reads the users file. On error the loaded accounts stay in effect.
func reloadUsers(users *auth.UserStore, path string, logger *logging.Logger) {
	lifecycle.NotifySystemd(lifecycle.StateReloading)
	defer lifecycle.NotifySystemd(lifecycle.StateReady)

	if err := users.Reload(path); err != nil {
		logger.Error("failed to reload users, keeping current accounts", map[string]any{
			"users_file": path,
			"error":      err.Error(),
		})
		return
	}
	logger.Info("users reloaded", map[string]any{"users_file": path, "users": users.Count()})
}
