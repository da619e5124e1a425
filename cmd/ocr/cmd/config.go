package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/config"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	show := &cobra.Command{
		Use:          "show",
		Short:        "Print the effective configuration as YAML",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use, or the search paths when none was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if used := a.loader.GetConfigFileUsed(); used != "" {
				_, err := fmt.Fprintln(w, used)
				return err
			}
			_, _ = fmt.Fprintln(w, "no config file found; searched:")
			for _, p := range config.GetConfigSearchPaths() {
				_, _ = fmt.Fprintf(w, "  %s/%s.yaml\n", p, config.ConfigFileName)
			}
			return nil
		},
	}

	cmd.AddCommand(show, path)
	return cmd
}
