package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rkirkendall/lumina/internal/generate"
	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

// imageOptions holds the flags shared by generate and edit.
type imageOptions struct {
	prompt    string
	fragments []string
	output    string
}

func newGenerateCmd() *cobra.Command {
	opts := &imageOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image from a text prompt",
		Long:  "Generate a square image guided by a text prompt and optional reusable prompt fragments.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImageAction(cmd, opts, studio.ModeCreate, "")
		},
		Example: `lumina generate \
  --prompt "Ultra-realistic product shot of a ceramic mug on a wooden desk" \
  --fragment fragments/photorealism.txt \
  --output output.png`,
	}
	addImageFlags(cmd, opts)
	return cmd
}

func addImageFlags(cmd *cobra.Command, opts *imageOptions) {
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Text prompt guiding the image (required)")
	cmd.Flags().StringSliceVarP(&opts.fragments, "fragment", "f", []string{}, "One or more text files to append as reusable prompt fragments")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "output.png", "Path to save the resulting image")
}

// runImageAction drives one image action through a fresh session so the
// command line follows the same policy and transcript rules as the studio.
func runImageAction(cmd *cobra.Command, opts *imageOptions, mode studio.Mode, source imagecodec.Image) error {
	if strings.TrimSpace(opts.prompt) == "" {
		return fmt.Errorf("--prompt is required")
	}
	frags, err := generate.LoadFragments(opts.fragments)
	if err != nil {
		return err
	}
	effPrompt := generate.BuildEffectivePrompt(opts.prompt, frags)

	gw, logger, _, err := connect(cmd)
	if err != nil {
		return err
	}
	orch := studio.New(gw,
		studio.WithLogger(logger),
		studio.WithNotifier(studio.NotifierFunc(func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		})),
	)
	if !source.IsZero() {
		orch.SetImage(source)
	}

	res, err := orch.PerformImageAction(cmd.Context(), effPrompt, mode)
	if err != nil {
		return err
	}
	if !res.Produced {
		fmt.Fprintln(cmd.OutOrStdout(), "no image produced")
		return nil
	}

	out := opts.output
	if out == "" {
		out = "output.png"
	}
	out, matches := imagecodec.OutputPath(res.Record.Result, out)
	if !matches {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: result is %s but %s has a different extension\n", res.Record.Result.MIMEType(), out)
	}
	if err := imagecodec.WriteFile(res.Record.Result, out); err != nil {
		return err
	}
	verb := "Generated"
	if res.Action == studio.ActionEdit {
		verb = "Edited"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s image saved at: %s\n", verb, out)
	return nil
}

func init() { rootCmd.AddCommand(newGenerateCmd()) }
