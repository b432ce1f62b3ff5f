package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

func newEditCmd() *cobra.Command {
	opts := &imageOptions{}
	cmd := &cobra.Command{
		Use:   "edit <image>",
		Short: "Edit an existing image with a text prompt",
		Long:  "Apply a text instruction to an existing image and save the edited result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := imagecodec.FromFile(args[0])
			if errors.Is(err, imagecodec.ErrNotImage) {
				return fmt.Errorf("not an image: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("read image %s: %w", args[0], err)
			}
			return runImageAction(cmd, opts, studio.ModeEdit, src)
		},
		Example: `lumina edit base.png --prompt "Replace the background with a sunset beach" -o edited.png`,
	}
	addImageFlags(cmd, opts)
	return cmd
}

func init() { rootCmd.AddCommand(newEditCmd()) }
