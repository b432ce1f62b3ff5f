package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rkirkendall/lumina/internal/shell"
)

func newStudioCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Open the interactive terminal studio",
		Long:  "Start an interactive session that keeps a current image, switches between create, edit and assistant modes, and records the conversation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, logger, _, err := connect(cmd)
			if err != nil {
				return err
			}
			opts := []shell.Option{shell.WithLogger(logger)}
			if !plain {
				if r, err := shell.NewMarkdownRenderer(100); err == nil {
					opts = append(opts, shell.WithMarkdown(r))
				} else {
					logger.Debug().Err(err).Msg("markdown rendering disabled")
				}
			}
			sh := shell.New(gw, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
			return sh.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print assistant replies without markdown rendering")
	return cmd
}

func init() { rootCmd.AddCommand(newStudioCmd()) }
