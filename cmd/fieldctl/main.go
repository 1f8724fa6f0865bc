// Package main provides fieldctl, a command-line client for the field API.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"fieldsync/internal/client"
)

var version = "dev"

// globalOptions are shared by every subcommand
type globalOptions struct {
	serverURL string
	token     string
	output    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "fieldctl",
		Short: "Read, write and watch single record fields",
		Long: `fieldctl talks to the field API of a fieldsync server.

Records are addressed as collection/RecordType/id, for example game/Player/7.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("FIELDCTL_SERVER", "http://localhost:8080/api"), "Field API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FIELDCTL_TOKEN"), "Bearer token for guarded servers")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json, yaml")

	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newSetCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))

	return rootCmd
}

func (o *globalOptions) client() *client.Client {
	return client.NewClient(o.serverURL, client.WithToken(o.token))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
