package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dlyoglab/ipcheck/internal/config"
	"github.com/dlyoglab/ipcheck/internal/storage"
)

var (
	flagUploadBucket string
	flagUploadKey    string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file|dir>",
	Short: "Upload a bundle to the configured bucket",
	Long: "Upload a file to the configured S3 bucket. A directory is packed into a zip " +
		"bundle first. The upload triggers the deployed analysis.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitConfigError
			return nil
		}
		bucket := cfg.Storage.Bucket
		if flagUploadBucket != "" {
			bucket = flagUploadBucket
		}
		if bucket == "" {
			fmt.Fprintln(os.Stderr, "Error: no bucket configured (set storage.bucket or IPCHECK_BUCKET)")
			exitCode = ExitConfigError
			return nil
		}

		src, key, cleanup, err := uploadSource(args[0], flagUploadKey, cfg.Select)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer cleanup()

		loc, err := storage.New(cfg.Storage.Region).Upload(commandContext(cmd), src, bucket, key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", args[0], loc)
		return nil
	},
}

// uploadSource returns the file to upload and its object key. Directories
// are archived to a temporary zip that cleanup removes.
func uploadSource(target, key string, sel config.SelectConfig) (src, objectKey string, cleanup func(), err error) {
	cleanup = func() {}
	info, err := os.Stat(target)
	if err != nil {
		return "", "", cleanup, err
	}
	if !info.IsDir() {
		if key == "" {
			key = filepath.Base(target)
		}
		return target, key, cleanup, nil
	}

	tmp, err := os.MkdirTemp("", "ipcheck-upload-")
	if err != nil {
		return "", "", cleanup, err
	}
	cleanup = func() { os.RemoveAll(tmp) }

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", "", cleanup, err
	}
	name := filepath.Base(abs) + ".zip"
	src = filepath.Join(tmp, name)
	if _, err := writeBundle(target, src, selectOptions(sel)); err != nil {
		return "", "", cleanup, err
	}
	if key == "" {
		key = name
	}
	return src, key, cleanup, nil
}

func init() {
	uploadCmd.Flags().StringVar(&flagUploadBucket, "bucket", "", "Bucket name (default: storage.bucket)")
	uploadCmd.Flags().StringVar(&flagUploadKey, "key", "", "Object key (default: file name)")
}
