package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/model"
)

var unlockForce bool

// pathResult is the per-path outcome of lock and unlock.
type pathResult struct {
	Path   string           `json:"path"`
	Status model.LockStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

var lockCmd = &cobra.Command{
	Use:   "lock <path>...",
	Short: "Lock files on the lfs server",
	Long: `Lock one or more files. Requests run one at a time; each waits for the
server's answer before the next is sent.

Examples:
  gitlock lock Assets/hero.png
  gitlock lock Levels/*.umap`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		var errs error
		results := make([]pathResult, 0, len(args))
		for _, path := range args {
			st, err := c.AcquireWait(ctx, path)
			res := pathResult{Path: path, Status: st}
			if err != nil {
				res.Error = err.Error()
				errs = multierr.Append(errs, fmt.Errorf("lock %s: %w", path, err))
			} else if !jsonOutput {
				fmt.Printf("%s %s\n", color.Success("Locked"), color.Path(path))
			}
			results = append(results, res)
		}

		if jsonOutput {
			if err := outputJSON(results); err != nil {
				return err
			}
		}
		return errs
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <path>...",
	Short: "Release file locks",
	Long: `Unlock one or more files. A lock held by someone else is only released
with --force.

Examples:
  gitlock unlock Assets/hero.png
  gitlock unlock --force Assets/hero.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		var errs error
		results := make([]pathResult, 0, len(args))
		for _, path := range args {
			before := c.LockStateOf(path)
			st, err := c.ReleaseWait(ctx, path, unlockForce)
			res := pathResult{Path: path, Status: st}
			if err != nil {
				res.Error = err.Error()
				errs = multierr.Append(errs, fmt.Errorf("unlock %s: %w", path, err))
				if c.IsInitialized() && before.State == model.LockStateUnlocked && !jsonOutput {
					fmt.Println(formatNotLockedHint(path, c.AllLocks()))
				}
			} else if !jsonOutput {
				fmt.Printf("%s %s\n", color.Success("Unlocked"), color.Path(path))
			}
			results = append(results, res)
		}

		if jsonOutput {
			if err := outputJSON(results); err != nil {
				return err
			}
		}
		return errs
	},
}

func init() {
	unlockCmd.Flags().BoolVarP(&unlockForce, "force", "f", false, "release a lock held by another user")
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}
