package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var flagCheckTimeout time.Duration

// maxCheckBody caps how much of the endpoint response is printed.
const maxCheckBody = 64 << 10

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Call a deployed ipcheck endpoint and print its response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(commandContext(cmd), flagCheckTimeout)
		defer cancel()

		code, body, err := callEndpoint(ctx, http.DefaultClient, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if code < 200 || code > 299 {
			fmt.Fprintf(os.Stderr, "Failed: %d\n", code)
			if body != "" {
				fmt.Fprintln(os.Stderr, body)
			}
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Response:")
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return nil
	},
}

func callEndpoint(ctx context.Context, client *http.Client, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCheckBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(data)), nil
}

func init() {
	checkCmd.Flags().DurationVar(&flagCheckTimeout, "timeout", 30*time.Second, "Request timeout")
}
