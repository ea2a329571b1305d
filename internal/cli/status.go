package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/gitlock"
	"github.com/PinkPanter/gitlock/pkg/model"
)

var statusRefresh bool

var statusCmd = &cobra.Command{
	Use:   "status [path...]",
	Short: "Show the lock state of files",
	Long: `Show the lock state of the given files, or every known lock when no path
is given. The answer comes from the cached lock list; pass --refresh to ask
the server first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		if statusRefresh {
			if err := c.Sync(ctx); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
		}
		if len(args) == 0 {
			return printLocks(c)
		}

		statuses := make([]model.LockStatus, 0, len(args))
		for _, path := range args {
			statuses = append(statuses, c.LockStateOf(path))
		}
		if jsonOutput {
			return outputJSON(statuses)
		}
		for i, st := range statuses {
			line := fmt.Sprintf("%s  %s", color.Path(args[i]), color.LockState(st.State.String()))
			if st.Record != nil && st.State == model.LockStateLockedByOther {
				line += " " + color.Owner("("+st.Record.Owner.Name+")")
			}
			if st.Executing {
				line += " " + color.Dim("[pending]")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Refresh and list every lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		if err := c.Sync(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		return printLocks(c)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-read the lock list from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		if err := c.Sync(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		if jsonOutput {
			return outputJSON(map[string]any{
				"locks":        len(c.AllLocks()),
				"last_refresh": c.LastRefresh(),
			})
		}
		fmt.Printf("Refreshed %d lock(s) across %d root(s)\n", len(c.AllLocks()), len(c.Roots()))
		return nil
	},
}

// lockView is one row of the lock listing.
type lockView struct {
	model.LockRecord
	Mine bool `json:"mine"`
}

func printLocks(c *gitlock.Client) error {
	user := c.Username()
	locks := c.AllLocks()
	views := make([]lockView, 0, len(locks))
	for _, r := range locks {
		views = append(views, lockView{LockRecord: r, Mine: user != "" && r.Owner.Name == user})
	}

	if jsonOutput {
		return outputJSON(views)
	}
	if !c.IsInitialized() {
		fmt.Println(color.Dim("Lock list not loaded yet. Run `gitlock refresh`."))
		return nil
	}
	if len(views) == 0 {
		fmt.Println("No locks held.")
		return nil
	}

	fmt.Println(color.Header(fmt.Sprintf("%-48s %-20s %s", "PATH", "OWNER", "LOCKED AT")))
	for _, v := range views {
		owner := fmt.Sprintf("%-20s", v.Owner.Name)
		if v.Mine {
			owner = color.Success(owner)
		} else {
			owner = color.Owner(owner)
		}
		fmt.Printf("%-48s %s %s\n", v.Path, owner, v.LockedAt)
	}
	if last := c.LastRefresh(); !last.IsZero() {
		fmt.Println(color.Dim(fmt.Sprintf("\nLast refreshed %s", last.Format(time.RFC3339))))
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVarP(&statusRefresh, "refresh", "r", false, "refresh from the server first")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(refreshCmd)
}
