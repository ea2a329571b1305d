package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/color"
)

var (
	whoamiDetect bool
	whoamiSet    string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show or change the lfs username",
	Long: `Show the username locks are compared against.

--detect asks the server by locking and unlocking .gitattributes.
--set stores a name directly.

The GITLOCK_USERNAME environment variable overrides the stored name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if whoamiDetect && whoamiSet != "" {
			return fmt.Errorf("--detect and --set are mutually exclusive")
		}
		ctx := cmd.Context()
		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		switch {
		case whoamiDetect:
			if _, err := c.DetectUsername(ctx); err != nil {
				return fmt.Errorf("detect username: %w", err)
			}
		case whoamiSet != "":
			c.SetUsername(whoamiSet)
			if err := c.Flush(); err != nil {
				return fmt.Errorf("save username: %w", err)
			}
		}

		name := c.Username()
		if jsonOutput {
			return outputJSON(map[string]any{"username": name})
		}
		if name == "" {
			fmt.Println(color.Dim("(unknown) run `gitlock whoami --detect`"))
			return nil
		}
		fmt.Println(color.Owner(name))
		return nil
	},
}

func init() {
	whoamiCmd.Flags().BoolVar(&whoamiDetect, "detect", false, "ask the lfs server for the username")
	whoamiCmd.Flags().StringVar(&whoamiSet, "set", "", "store `name` as the username")
	rootCmd.AddCommand(whoamiCmd)
}
