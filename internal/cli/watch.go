package cli

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/config"
	"github.com/PinkPanter/gitlock/pkg/metrics"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the lock list fresh in the foreground",
	Long: `Run the renewal loop in the foreground: pending results are applied on
every tick and the lock list is re-read every renew_interval.

Edits to .gitlock/config.yaml are picked up while running. With
--metrics-addr (or metrics.addr) a Prometheus /metrics endpoint is served.

Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := clientOptions()
		if opts.Metrics == nil {
			opts.Metrics = metrics.NewRegistry()
		}

		ctx := cmd.Context()
		c, err := openClientWith(ctx, opts)
		if err != nil {
			return err
		}
		defer closeClient(c)

		addr := watchMetricsAddr
		if addr == "" {
			addr = c.Config().Metrics.Addr
		}

		log := c.Logger()
		if !jsonOutput {
			fmt.Printf("Watching locks in %s (renew every %s)\n", color.Path(c.Root()), c.RenewInterval())
			if addr != "" {
				fmt.Printf("Metrics available at http://%s/metrics\n", addr)
			}
			fmt.Println(color.Dim("Press Ctrl+C to stop"))
		}

		p := pool.New().WithContext(ctx).WithCancelOnError()
		p.Go(c.Run)
		p.Go(func(ctx context.Context) error {
			return config.Watch(ctx, c.Root(), func(cfg *config.Config, err error) {
				if err != nil {
					log.ErrorErr("config reload failed", err)
					return
				}
				if err := c.ApplyConfig(cfg); err != nil {
					log.ErrorErr("config reload failed", err)
					return
				}
				log.Info("config reloaded", map[string]any{"renew_interval": c.RenewInterval().String()})
			})
		})
		if addr != "" {
			p.Go(func(ctx context.Context) error {
				if err := opts.Metrics.Serve(ctx, addr); err != nil {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
		}
		return p.Wait()
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchMetricsAddr, "metrics-addr", "a", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
