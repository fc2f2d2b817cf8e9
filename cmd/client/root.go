package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shiftgrid/internal/client/auth"
	"github.com/iudanet/shiftgrid/internal/client/cli"
	"github.com/iudanet/shiftgrid/internal/client/iocli"
	"github.com/iudanet/shiftgrid/internal/client/storage/boltdb"
	"github.com/iudanet/shiftgrid/internal/config"
	"github.com/iudanet/shiftgrid/internal/logging"
)

type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	io         iocli.IO
	configFile string
	month      string
}

func newRootCmd() *cobra.Command {
	a := &app{io: iocli.NewStdio()}

	root := &cobra.Command{
		Use:           "shiftgrid",
		Short:         "Collaborative monthly shift grid client",
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
	root.PersistentFlags().StringVarP(&a.month, "month", "m", time.Now().Format("2006-01"), "month to edit (YYYY-MM)")

	root.AddCommand(
		a.loginCmd(),
		a.authCommand("logout", "Forget the stored access token",
			func(ctx context.Context, tokens *auth.Store) error { return cli.RunLogout(ctx, a.io, tokens) }),
		a.authCommand("status", "Show the stored identity",
			func(ctx context.Context, tokens *auth.Store) error { return cli.RunStatus(ctx, a.io, tokens, time.Now()) }),
		a.command("show", "Print the shift grid", cobra.NoArgs,
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunShow(ctx) }),
		a.command("set <staff> <date> <state>", "Set the state of a cell (work, fixedOff, requestedOff, auto, empty)", cobra.ExactArgs(3),
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunSet(ctx, args) }),
		a.command("lock <staff> <date>", "Lock a cell against state changes", cobra.ExactArgs(2),
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunLock(ctx, args, true) }),
		a.command("unlock <staff> <date>", "Unlock a cell", cobra.ExactArgs(2),
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunLock(ctx, args, false) }),
		a.auditCommand(),
		a.command("sync", "Send queued changes to the server", cobra.NoArgs,
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunSync(ctx) }),
		a.command("pending", "List changes waiting for the server", cobra.NoArgs,
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunPending(ctx) }),
		a.command("resolve <change-id> <local|remote|manual>", "Resolve a version conflict", cobra.ExactArgs(2),
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunResolve(ctx, args) }),
		a.command("who", "List users editing the grid", cobra.NoArgs,
			func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunWho(ctx) }),
	)

	return root
}

func (a *app) init() error {
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	slog.SetDefault(logger)

	a.cfg, a.logger, a.logCloser = cfg, logger, closer
	return nil
}

type runFunc func(ctx context.Context, c *cli.Cli, args []string) error

// command оборачивает run: открывает сессию на время выполнения команды
func (a *app) command(use, short string, args cobra.PositionalArgs, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(c *cli.Cli) error {
				return run(cmd.Context(), c, args)
			})
		},
	}
}

func (a *app) auditCommand() *cobra.Command {
	var apply bool
	cmd := a.command("audit", "Check the grid against the scheduling rules", cobra.NoArgs,
		func(ctx context.Context, c *cli.Cli, args []string) error { return c.RunAudit(ctx, apply) })
	cmd.Flags().BoolVar(&apply, "apply", false, "apply the first suggestion of every violation")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Store an access token issued by shiftgrid-server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			return a.withTokens(cmd.Context(), func(tokens *auth.Store) error {
				return cli.RunLogin(cmd.Context(), a.io, tokens, raw)
			})
		},
	}
}

func (a *app) authCommand(use, short string, run func(ctx context.Context, tokens *auth.Store) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTokens(cmd.Context(), func(tokens *auth.Store) error {
				return run(cmd.Context(), tokens)
			})
		},
	}
}

// withTokens открывает только локальное хранилище токена
func (a *app) withTokens(ctx context.Context, fn func(tokens *auth.Store) error) error {
	db, err := boltdb.New(ctx, a.cfg.Client.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}()
	return fn(auth.NewStore(db))
}
