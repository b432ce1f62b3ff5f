package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rkirkendall/lumina/internal/ai"
	"github.com/rkirkendall/lumina/internal/config"
	"github.com/rkirkendall/lumina/internal/logging"
	"github.com/rkirkendall/lumina/internal/version"
)

var (
	cfgFile     string
	versionFlag bool
	verbose     bool

	// newGateway is swapped out in tests.
	newGateway = ai.New

	rootCmd = &cobra.Command{
		Use:   "lumina",
		Short: "Lumina — AI image studio for Gemini",
		Long:  "Lumina generates and edits images from text prompts and chats with a creative assistant about them, from the command line, an interactive terminal studio or a local HTTP API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// --version/-v: print version and exit
			if versionFlag {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Self-update check (best-effort)
			maybeSelfUpdate(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lumina.yaml)")
	rootCmd.PersistentFlags().String("image-model", config.DefaultImageModel, "Model used to generate and edit images")
	rootCmd.PersistentFlags().String("chat-model", config.DefaultChatModel, "Model used for assistant chat")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Shorthand for --log-level debug")
	viper.BindPFlag(config.KeyImageModel, rootCmd.PersistentFlags().Lookup("image-model"))
	viper.BindPFlag(config.KeyChatModel, rootCmd.PersistentFlags().Lookup("chat-model"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().BoolVarP(&versionFlag, "version", "v", false, "Print version and exit")
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	if err := config.ReadFile(v, cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}
}

// loadRuntime resolves the configuration and a logger writing to stderr.
func loadRuntime(cmd *cobra.Command) (config.Config, zerolog.Logger) {
	cfg := config.Load(viper.GetViper())
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat), cmd.ErrOrStderr())
	return cfg, logger
}

// connect resolves configuration and opens the selected gateway.
func connect(cmd *cobra.Command) (ai.Gateway, zerolog.Logger, config.Config, error) {
	cfg, logger := loadRuntime(cmd)
	gw, err := newGateway(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, logger, cfg, err
	}
	return gw, logger, cfg, nil
}
