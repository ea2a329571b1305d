package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/color"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn lock tracking on for this repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn lock tracking off for this repository",
	Long: `Turn lock tracking off. While disabled, lock and unlock do nothing and
the background refresh stops. The cached lock list is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, false)
	},
}

func setEnabled(cmd *cobra.Command, enabled bool) error {
	c, err := openClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClient(c)

	c.SetEnabled(enabled)
	if err := c.Flush(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if jsonOutput {
		return outputJSON(map[string]any{"enabled": enabled})
	}
	if enabled {
		fmt.Println(color.Success("gitlock enabled"))
	} else {
		fmt.Println(color.Warning("gitlock disabled"))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}
