package cli

import (
	"fmt"

	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newNoticesCmd(app *App) *cobra.Command {
	var (
		limit int
		keep  bool
	)

	cmd := &cobra.Command{
		Use:   "notices",
		Short: "Show change notices received for the open project",
		Long: `Show the change notices recorded while watching the open project,
newest first. Listed notices are marked as seen unless --keep-unseen is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			ctx := cmd.Context()
			notices, err := app.Session.Notices(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatNotices(notices, app.now()))
			if keep || len(notices) == 0 {
				return nil
			}
			return app.Session.MarkNoticesSeen(ctx)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum notices to show, 0 for all")
	cmd.Flags().BoolVar(&keep, "keep-unseen", false, "Do not mark the listed notices as seen")
	return cmd
}
