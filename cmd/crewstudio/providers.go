package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
)

// =============================================================================
// 🏷️ providers / models 命令
// =============================================================================

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported LLM providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printProviders(cmd.OutOrStdout(), credentials.FromEnv(os.LookupEnv))
			return nil
		},
	}
}

func printProviders(w io.Writer, creds *credentials.Store) {
	fmt.Fprintln(w, titleStyle.Render("Providers"))
	rows := make([][]string, 0, len(catalog.AllKinds()))
	for _, d := range catalog.Providers() {
		key := "-"
		if d.RequiresAPIKey {
			key = warnStyle.Render("missing")
			if creds.ListingKey(d.Kind) != "" {
				key = okStyle.Render("set")
			}
		}
		listing := "static"
		if d.LiveListing {
			listing = "live"
		}
		rows = append(rows, []string{d.Kind.String(), d.DisplayName, d.RoutingPrefix + "/", listing, key})
	}
	renderTable(w, []string{"NAME", "DISPLAY NAME", "PREFIX", "LISTING", "API KEY"}, rows)
}

// modelLister 是 *catalog.Catalog 的查询面，测试中替换
type modelLister interface {
	ListModels(ctx context.Context, kind catalog.Kind, credential string) catalog.ListResult
	ListAll(ctx context.Context, keys catalog.KeyFunc) []catalog.ListResult
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var (
		provider string
		all      bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List selectable models for a provider",
		Example: `  crewstudio models --provider openai
  crewstudio models --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && provider == "" {
				return fmt.Errorf("either --provider or --all is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Log)
			defer logger.Sync()

			a := newApp(cfg, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return listModels(ctx, cmd.OutOrStdout(), a.catalog, a.seed, provider, all)
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider name (openai, anthropic, groq, zhipu, ollama)")
	cmd.Flags().BoolVar(&all, "all", false, "List models for every provider")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	return cmd
}

func listModels(ctx context.Context, w io.Writer, lister modelLister, creds *credentials.Store, provider string, all bool) error {
	if all {
		for _, res := range lister.ListAll(ctx, creds.ListingKey) {
			printListResult(w, res)
		}
		return nil
	}
	kind, err := catalog.ParseKind(provider)
	if err != nil {
		return err
	}
	printListResult(w, lister.ListModels(ctx, kind, creds.ListingKey(kind)))
	return nil
}

func printListResult(w io.Writer, res catalog.ListResult) {
	name := res.Provider.String()
	if d, ok := catalog.Lookup(res.Provider); ok {
		name = d.DisplayName
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(name), statusStyle(res.Status).Render("["+string(res.Status)+"]"))
	if res.Reason != "" {
		fmt.Fprintln(w, dimStyle.Render("  "+res.Reason))
	}
	if !res.Selectable() {
		fmt.Fprintln(w, errStyle.Render("  no selectable model"))
		return
	}
	for i, m := range res.Models {
		marker := "  "
		if i == 0 {
			marker = selectStyle.Render("> ")
		}
		fmt.Fprintln(w, marker+m)
	}
	fmt.Fprintln(w)
}
