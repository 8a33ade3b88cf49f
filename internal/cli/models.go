package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlyoglab/ipcheck/internal/config"
	"github.com/dlyoglab/ipcheck/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers and models",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, p := range providers.Presets {
			fmt.Fprintf(w, "%s (%s):\n", p.Name, p.URL)
			for _, m := range p.Models {
				marker := ""
				if m == p.DefaultModel {
					marker = " (default)"
				}
				fmt.Fprintf(w, "  - %s%s\n", m, marker)
			}
			fmt.Fprintln(w)
		}
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s...\n", cfg.Provider)

		p, err := providers.New(providers.Options{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			BaseURL:  cfg.BaseURL,
			APIKey:   cfg.APIKey,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			exitCode = ExitConfigError
			return nil
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
		defer cancel()

		_, err = p.Analyze(ctx, providers.Request{
			SystemPrompt: "Respond with exactly: ok",
			UserPrompt:   "ping",
			MaxTokens:    10,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if providers.IsAuthError(err) {
				exitCode = ExitConfigError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%s) is configured and responding\n", p.Name(), p.Model())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	modelsDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
}
