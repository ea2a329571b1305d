package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/color"
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List the repository and submodule roots",
	Long: `List every root lock commands are routed to, longest first. A path
belongs to the first root it falls under.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(c)

		roots := c.Roots()
		if jsonOutput {
			out := map[string]any{"root": c.Root(), "roots": roots}
			if err := c.RootsError(); err != nil {
				out["error"] = err.Error()
			}
			return outputJSON(out)
		}
		for _, r := range roots {
			if r == c.Root() {
				fmt.Printf("%s %s\n", color.Path(r), color.Dim("(main)"))
				continue
			}
			fmt.Println(color.Path(r))
		}
		if err := c.RootsError(); err != nil {
			fmt.Println(color.Warningf("submodules could not be read: %v", err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rootsCmd)
}
