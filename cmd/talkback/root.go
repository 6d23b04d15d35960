package main

import (
	"github.com/RichardoC/talkback/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	configSet  bool
}

// configRequired reports whether a missing config file is an error: only
// when the path was given explicitly.
func (o *rootOptions) configRequired() bool {
	return o.configSet
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "talkback",
		Short:         "Voice-friendly chat with OpenAI, DeepSeek and Perplexity models",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.configSet = cmd.Flags().Changed("config")
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "path to the TOML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newThreadsCmd(opts),
		newSettingsCmd(opts),
		newModelsCmd(),
	)
	return cmd
}
