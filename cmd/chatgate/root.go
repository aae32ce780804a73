// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/internal/logging"
)

// serviceName labels every log record.
const serviceName = "chatgate"

// NewRootCmd creates the root command for the chatgate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(serveDeps *ServeDeps) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "chatgate",
		Short: "chatgate - authentication for the chat service",
		Long: `chatgate registers chat users, exchanges their credentials for signed
bearer tokens and guards protected routes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/chatgate/config.yaml)")
	cmd.PersistentFlags().String("database-url", "", "database URL (overrides DATABASE_URL)")
	cmd.PersistentFlags().String("log-format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	configPath := func() string { return configFile }

	cmd.AddCommand(NewServeCmd(configPath, serveDeps))
	cmd.AddCommand(NewMigrateCmd(configPath))
	cmd.AddCommand(NewHashCmd())

	return cmd
}

// loadConfig reads configuration with cmd's flags as the highest-precedence
// source and builds the process logger from it.
func loadConfig(cmd *cobra.Command, file string, databaseOnly bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.Options{
		File:         file,
		Flags:        cmd.Flags(),
		DatabaseOnly: databaseOnly,
	})
	if err != nil {
		return nil, nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	return cfg, logger, nil
}
