package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

func newChatCmd() *cobra.Command {
	var chatMessage, chatImage string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask the creative assistant a question",
		Long:  "Send one message to the assistant, optionally with an image for context, and print the reply.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatMessage == "" {
				return errors.New("--message is required")
			}
			var contextImage imagecodec.Image
			if chatImage != "" {
				img, err := imagecodec.FromFile(chatImage)
				if err != nil {
					return fmt.Errorf("read image %s: %w", chatImage, err)
				}
				contextImage = img
			}

			gw, logger, _, err := connect(cmd)
			if err != nil {
				return err
			}
			orch := studio.New(gw, studio.WithLogger(logger))
			orch.SetImage(contextImage)
			res, err := orch.PerformChatTurn(cmd.Context(), chatMessage)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply.Content)
			return nil
		},
		Example: `lumina chat -m "How can I make this portrait feel warmer?" --image portrait.png`,
	}
	cmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message for the assistant (required)")
	cmd.Flags().StringVar(&chatImage, "image", "", "Optional image to discuss")
	return cmd
}

func init() { rootCmd.AddCommand(newChatCmd()) }
