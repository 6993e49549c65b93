// Command kelpctl runs Kelp's planning pipeline from the terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootOpts struct {
	taxonomyFile string
	debug        bool
}

func newRootCmd() *cobra.Command {
	var opts rootOpts

	cmd := &cobra.Command{
		Use:           "kelpctl",
		Short:         "Plan outings from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.taxonomyFile, "taxonomy-file", "", "YAML category taxonomy (defaults to $KELP_TAXONOMY_FILE or the built-in table)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log debug output to stderr")

	cmd.AddCommand(newPlanCmd(&opts))
	cmd.AddCommand(newGenerateCmd(&opts))
	cmd.AddCommand(newEditCmd())
	cmd.AddCommand(newChatCmd())
	return cmd
}

func (o *rootOpts) registry(cfg config.Config) (*taxonomy.Registry, error) {
	path := o.taxonomyFile
	if path == "" {
		path = cfg.TaxonomyFile
	}
	return taxonomy.NewRegistry(path)
}

// completer returns nil when no LLM key is configured.
func completer(cfg config.Config) genai.Completer {
	opts := []genai.Option{genai.WithAPIKey(cfg.OpenAIKey), genai.WithTimeout(cfg.CompletionTimeout)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(cfg.OpenAIModel))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Debug("kelpctl: completion client unavailable", "error", err)
		return nil
	}
	return client
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
