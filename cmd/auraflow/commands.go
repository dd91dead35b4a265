package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/auraflow/internal/server"
	"github.com/petrijr/auraflow/pkg/api"
	"github.com/petrijr/auraflow/pkg/scheduler"
)

func (c *cli) newScheduler(a *app) *scheduler.Scheduler {
	sc := a.cfg.Scheduler
	return scheduler.NewWithConfig(a.orch, scheduler.Config{
		Interval:     sc.Interval,
		Pacing:       sc.Pacing,
		Concurrency:  sc.Concurrency,
		SeedWhenIdle: sc.SeedWhenIdle,
		Logger:       &a.logger,
	})
}

func (c *cli) runCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep active ventures on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Metrics.Addr
				}
				sched := c.newScheduler(a)

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return sched.Run(gctx) })

				if addr != "" {
					srv := &http.Server{
						Addr: addr,
						Handler: server.NewRouter(server.Config{
							Orchestrator: a.orch,
							Metrics:      a.metrics.Handler(),
							Logger:       a.logger,
						}),
						ReadHeaderTimeout: 10 * time.Second,
					}
					g.Go(func() error {
						a.logger.Info().Str("addr", addr).Msg("ops server listening")
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							return err
						}
						return nil
					})
					g.Go(func() error {
						<-gctx.Done()
						shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
						defer cancel()
						return srv.Shutdown(shutdownCtx)
					})
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "ops HTTP listen address (overrides metrics.addr)")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run every active venture once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				report, err := c.newScheduler(a).Sweep(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "processed=%d skipped=%d live=%d failed=%d duration=%s\n",
					report.Processed, report.Skipped, report.Live, report.Failed, report.Duration.Round(time.Millisecond))
				if report.Seeded != "" {
					fmt.Fprintf(out, "seeded venture %s\n", report.Seeded)
				}
				return nil
			})
		},
	}
}

func (c *cli) advanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <venture-id>",
		Short: "Drive one venture until it is live or a stage fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				v, err := a.orch.Run(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", v.ID, v.State)
				return nil
			})
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a venture in DISCOVERY",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				v, err := a.orch.Create(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.ID)
				return nil
			})
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ventures",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts api.VentureListOptions
			if state != "" {
				st, err := api.ParseState(state)
				if err != nil {
					return err
				}
				opts.State = st
			}
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				ventures, err := a.orch.List(ctx, opts)
				if err != nil {
					return err
				}
				renderVentures(cmd.OutOrStdout(), ventures)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only ventures in this state")
	return cmd
}

func renderVentures(w io.Writer, ventures []*api.Venture) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "State", "Topic", "Landing Page", "Created"})
	for _, v := range ventures {
		topic, landing := "", ""
		if idea, err := api.DecodeNicheIdea(v.NicheIdea); err == nil {
			topic = idea.ChosenTopic
		}
		if sales, err := api.DecodeSalesDetails(v.SalesDetails); err == nil {
			landing = sales.LandingPageURL
		}
		tw.AppendRow(table.Row{v.ID, v.State, topic, landing, v.CreatedAt.Format(time.RFC3339)})
	}
	tw.Render()
}

func (c *cli) showCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <venture-id>",
		Short: "Print a venture record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				v, err := a.orch.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printDocument(cmd.OutOrStdout(), format, v)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <venture-id>",
		Short: "Print the transition history of a venture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				events, err := a.orch.History(ctx, args[0])
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"At", "Type", "From", "To", "Detail"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.At.Format(time.RFC3339), ev.Type, ev.From, ev.To, ev.Detail})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <venture-id>",
		Short: "Move a failed venture back to the stage that failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				v, err := a.orch.Reset(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", v.ID, v.State)
				return nil
			})
		},
	}
}

// printDocument writes v as YAML or JSON. Detail documents are decoded so
// they render as nested objects rather than strings.
func printDocument(w io.Writer, format string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
