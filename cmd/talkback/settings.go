package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/RichardoC/talkback/internal/settings"
	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
	}

	// withSettings opens the app and hands the settings store to fn.
	withSettings := func(fn func(cmd *cobra.Command, s *settings.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(cmd, a.settings, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current settings",
			RunE: withSettings(func(cmd *cobra.Command, s *settings.Store, _ []string) error {
				snap, err := s.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "model:    %s (%s)\n", snap.Model, models.ProviderFor(snap.Model).DisplayName())
				fmt.Fprintf(out, "language: %s\n", snap.Language)
				names := make([]string, 0, len(snap.Toggles))
				for name := range snap.Toggles {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(out, "%s: %t\n", name, snap.Toggles[name])
				}
				for _, p := range models.Providers {
					state := "missing"
					if snap.Credentials[p] {
						state = "set"
					}
					fmt.Fprintf(out, "%s API key: %s\n", p.DisplayName(), state)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set-key <provider> <key>",
			Short: "Store an API key; an empty key removes it",
			Args:  cobra.RangeArgs(1, 2),
			RunE: withSettings(func(cmd *cobra.Command, s *settings.Store, args []string) error {
				p, ok := models.ParseProvider(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", settings.ErrUnknownProvider, args[0])
				}
				key := ""
				if len(args) == 2 {
					key = args[1]
				}
				return s.SetCredential(cmd.Context(), p, key)
			}),
		},
		&cobra.Command{
			Use:   "set-model <model>",
			Short: "Select the model used for replies",
			Args:  cobra.ExactArgs(1),
			RunE: withSettings(func(cmd *cobra.Command, s *settings.Store, args []string) error {
				return s.SetModel(cmd.Context(), models.ModelID(args[0]))
			}),
		},
		&cobra.Command{
			Use:   "set-language <tag>",
			Short: "Select the speech language, e.g. en-GB",
			Args:  cobra.ExactArgs(1),
			RunE: withSettings(func(cmd *cobra.Command, s *settings.Store, args []string) error {
				return s.SetLanguage(cmd.Context(), models.Language(args[0]))
			}),
		},
		&cobra.Command{
			Use:   "set-toggle <name> <true|false>",
			Short: "Change a feature toggle",
			Args:  cobra.ExactArgs(2),
			RunE: withSettings(func(cmd *cobra.Command, s *settings.Store, args []string) error {
				v, err := strconv.ParseBool(args[1])
				if err != nil {
					return fmt.Errorf("invalid toggle value %q: %w", args[1], err)
				}
				return s.SetToggle(cmd.Context(), args[0], v)
			}),
		},
	)
	return cmd
}
