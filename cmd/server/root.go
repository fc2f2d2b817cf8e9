package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iudanet/shiftgrid/internal/config"
	"github.com/iudanet/shiftgrid/internal/logging"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
)

type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "shiftgrid-server",
		Short:         "Shift record service for the collaborative grid",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with SHIFTGRID_* variables")

	root.AddCommand(a.serveCmd(), a.tokenCmd())
	return root
}

func (a *app) init() error {
	// .env не обязателен
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}

	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is not configured (set SHIFTGRID_SERVER_JWT_SECRET)")
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	slog.SetDefault(logger)

	a.cfg, a.logger, a.logCloser = cfg, logger, closer
	return nil
}

func (a *app) tokenCmd() *cobra.Command {
	var userID, username, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := jwt.NewService(a.cfg.Server.JWTSecret, a.cfg.Server.TokenTTL)
			token, err := tokens.GenerateToken(userID, username, role)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&username, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", jwt.RoleEditor, "role: editor or viewer")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
