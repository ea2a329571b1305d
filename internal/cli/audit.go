package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/internal/audit"
	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/metrics"
)

var (
	auditLimit  int
	auditVerify bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the lock operation journal",
	Long: `Show recent lock and unlock operations from .gitlock/audit.jsonl.

Every entry carries the hash of the one before it; --verify checks the whole
chain and fails if any line was altered or removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := requireRoot()
		if err != nil {
			return err
		}
		journal := audit.NewFileAppender(audit.PathFor(root))

		if auditVerify {
			n, err := journal.Verify()
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string]any{"valid": true, "records": n})
			}
			fmt.Println(color.Successf("audit chain intact (%d records)", n))
			return nil
		}

		records, err := journal.Records(auditLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No lock operations recorded.")
			return nil
		}
		for _, r := range records {
			outcome := color.Success(r.Outcome)
			if r.Outcome != metrics.OutcomeSuccess {
				outcome = color.Error(r.Outcome)
			}
			line := fmt.Sprintf("%s  %-7s %s %s", color.Dim(r.Timestamp), r.Kind, outcome, color.Path(r.Path))
			if r.Force {
				line += " " + color.Warning("(force)")
			}
			if r.Username != "" {
				line += " by " + color.Owner(r.Username)
			}
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "show at most this many entries (0 for all)")
	auditCmd.Flags().BoolVar(&auditVerify, "verify", false, "verify the hash chain")
	rootCmd.AddCommand(auditCmd)
}
