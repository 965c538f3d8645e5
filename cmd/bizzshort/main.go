package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	apiURL  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "bizzshort",
		Short: "Operate a bizzshort content API",
		Long: `bizzshort talks to a running bizzshortd over HTTP.

Available subcommands:
  seed  - Load a YAML fixture file into the content collections
  prefs - Read or overwrite a browser profile's ad preferences`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("BIZZSHORT_API", "http://localhost:8080"), "base URL of the bizzshortd API")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")

	root.AddCommand(newSeedCmd(opts), newPrefsCmd(opts))
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
