// Command auraflow runs the venture pipeline and inspects its state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petrijr/auraflow/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the state shared by all subcommands.
type cli struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "auraflow",
		Short: "Autonomous micro-venture pipeline",
		Long: `auraflow takes ventures from niche discovery through ebook generation
to a deployed landing page with a payment link.

Each venture moves DISCOVERY -> PRODUCT_GENERATION -> DEPLOYMENT -> LIVE.
A failed stage parks the venture in FAILED_<stage> until it is reset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Bind(c.v)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "config file (YAML)")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("store", "sqlite", "store backend: sqlite, redis or memory")
	flags.String("db", "db/auraflow.db", "SQLite database path")
	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = c.v.BindPFlag("store.backend", flags.Lookup("store"))
	_ = c.v.BindPFlag("store.sqlite_path", flags.Lookup("db"))

	root.AddCommand(
		c.runCmd(),
		c.sweepCmd(),
		c.advanceCmd(),
		c.createCmd(),
		c.listCmd(),
		c.showCmd(),
		c.historyCmd(),
		c.resetCmd(),
	)
	return root
}

// withApp builds an app for the duration of fn.
func (c *cli) withApp(ctx context.Context, live bool, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx, c.v, c.configFile, live)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn().Err(err).Msg("shutdown")
		}
	}()
	return fn(ctx, a)
}
