package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dlyoglab/ipcheck/internal/bundle"
	"github.com/dlyoglab/ipcheck/internal/config"
)

var (
	flagBundleOut     string
	flagBundleInclude string
	flagBundleExclude string
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <dir>",
	Short: "Pack the text files of a directory into a zip bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		n, err := writeBundle(args[0], flagBundleOut, selectOptions(cfg.Select))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d file(s) to %s\n", n, flagBundleOut)
		return nil
	},
}

func selectOptions(sel config.SelectConfig) bundle.SelectOptions {
	opts := bundle.SelectOptions{Include: sel.Include, Exclude: sel.Exclude, MaxFiles: sel.MaxFiles}
	if flagBundleInclude != "" {
		opts.Include = splitComma(flagBundleInclude)
	}
	if flagBundleExclude != "" {
		opts.Exclude = append(opts.Exclude, splitComma(flagBundleExclude)...)
	}
	return opts
}

// writeBundle archives the selected files under dir into out and returns
// how many were written.
func writeBundle(dir, out string, opts bundle.SelectOptions) (int, error) {
	b, err := bundle.FromDir(dir, opts)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	if b.Empty() {
		return 0, fmt.Errorf("no files selected under %s", dir)
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", out, err)
	}
	if err := bundle.WriteArchive(f, b); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", out, err)
	}
	return b.Len(), nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	bundleCmd.Flags().StringVarP(&flagBundleOut, "out", "o", "bundle.zip", "Output archive path")
	bundleCmd.Flags().StringVar(&flagBundleInclude, "paths", "", "Include file path globs (comma-separated)")
	bundleCmd.Flags().StringVar(&flagBundleExclude, "exclude", "", "Exclude file path globs (comma-separated)")
}
