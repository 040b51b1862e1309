package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/crewstudio/agent/research"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/catalog"
)

// =============================================================================
// 🚀 run 命令
// =============================================================================

// runFlags 命令行覆盖选择中的字段，空值表示不覆盖
type runFlags struct {
	topic           string
	selectionFile   string
	hierarchical    bool
	managerProvider string
	managerModel    string
	workerProvider  string
	workerModel     string
	plain           bool
	quiet           bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Run the research crew and render the report",
		Example: `  crewstudio run --topic "AI trends 2026"
  crewstudio run --hierarchical --manager-provider anthropic --manager-model claude-sonnet-4-5 "quantum networking"
  crewstudio run --selection team.yaml --plain "edge inference" > report.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.topic == "" {
				f.topic = strings.Join(args, " ")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sel, err := resolveSelection(cfg.Selection, f, cmd.Flags().Changed("hierarchical"))
			if err != nil {
				return err
			}

			logger := initLogger(cfg.Log)
			defer logger.Sync()
			a := newApp(cfg, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runResearch(ctx, a, sel, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.topic, "topic", "t", "", "Research topic")
	cmd.Flags().StringVarP(&f.selectionFile, "selection", "s", "", "Selection file (default "+DefaultSelectionFile+" when present)")
	cmd.Flags().BoolVar(&f.hierarchical, "hierarchical", false, "Use a research director delegating to three specialists")
	cmd.Flags().StringVar(&f.managerProvider, "manager-provider", "", "Manager (or single agent) provider")
	cmd.Flags().StringVar(&f.managerModel, "manager-model", "", "Manager (or single agent) model")
	cmd.Flags().StringVar(&f.workerProvider, "worker-provider", "", "Worker provider (hierarchical only)")
	cmd.Flags().StringVar(&f.workerModel, "worker-model", "", "Worker model (hierarchical only)")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Print the raw markdown report")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not print progress events")
	return cmd
}

// resolveSelection 合并配置、选择文件与命令行参数，后者优先
func resolveSelection(base config.Selection, f *runFlags, hierarchicalSet bool) (config.Selection, error) {
	sel := base
	if sel.IsZero() {
		sel = config.DefaultSelection()
	}

	path := f.selectionFile
	if path == "" {
		if _, err := os.Stat(DefaultSelectionFile); err == nil {
			path = DefaultSelectionFile
		}
	}
	if path != "" {
		loaded, err := config.LoadSelection(path)
		if err != nil {
			return config.Selection{}, err
		}
		sel = loaded
	}

	if hierarchicalSet {
		sel.UseHierarchical = f.hierarchical
	}
	if f.managerProvider != "" {
		switchProvider(&sel.ManagerProvider, &sel.ManagerModel, f.managerProvider)
	}
	if f.managerModel != "" {
		sel.ManagerModel = f.managerModel
	}
	if f.workerProvider != "" {
		switchProvider(&sel.WorkerProvider, &sel.WorkerModel, f.workerProvider)
	}
	if f.workerModel != "" {
		sel.WorkerModel = f.workerModel
	}

	normalized, err := sel.Normalize()
	switch {
	case errors.Is(err, config.ErrManagerModelRequired) && f.managerProvider != "" && f.managerModel == "":
		return normalized, fmt.Errorf("%w: pass --manager-model for %s", err, f.managerProvider)
	case errors.Is(err, config.ErrWorkerModelRequired) && f.workerProvider != "" && f.workerModel == "":
		return normalized, fmt.Errorf("%w: pass --worker-model for %s", err, f.workerProvider)
	}
	return normalized, err
}

// switchProvider 换成另一个 Provider 时旧模型不再适用：改用新 Provider 的首个静态模型，
// 没有静态列表（Ollama）则留空，由调用方显式给出模型。
func switchProvider(provider, model *string, to string) {
	from := *provider
	*provider = to
	next, err := catalog.ParseKind(to)
	if err != nil {
		return
	}
	if cur, err := catalog.ParseKind(from); err == nil && cur == next {
		return
	}
	*model = ""
	if models := catalog.MustLookup(next).StaticModels(); len(models) > 0 {
		*model = models[0]
	}
}

func runResearch(ctx context.Context, a *app, sel config.Selection, f *runFlags, stdout, stderr io.Writer) error {
	// 组装在任何网络请求之前完成，空主题与不支持的 Provider 在这里失败
	spec, err := research.Assemble(sel, f.topic, research.Deps{
		Models:      a.models,
		Credentials: a.seed.Clone(),
	})
	if err != nil {
		return err
	}

	if !f.quiet {
		fmt.Fprintln(stderr, titleStyle.Render("Research crew"), dimStyle.Render(describeSelection(sel)))
		if spec.SearchKey == "" {
			fmt.Fprintln(stderr, warnStyle.Render("SERPER_API_KEY is not set; web search will report errors to the agents"))
		}
	}

	var runOpts []research.RunOption
	if !f.quiet {
		runOpts = append(runOpts, research.WithObserver(func(ev research.RunEvent) {
			fmt.Fprintln(stderr, formatEvent(ev))
		}))
	}

	result, err := a.runner.Run(ctx, spec, runOpts...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run cancelled")
		}
		return err
	}

	a.logger.Debug("run finished",
		zap.String("run_id", result.RunID),
		zap.Int("tokens", result.TotalTokens),
	)

	renderer, err := newReportRenderer(f.plain)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, renderer.Render(result.Report))

	if !f.quiet {
		fmt.Fprintln(stderr, okStyle.Render("Report saved to "+result.OutputPath),
			dimStyle.Render(fmt.Sprintf("(%s, %d tokens)", result.Duration.Round(time.Second), result.TotalTokens)))
		if len(result.MissingSections) > 0 {
			fmt.Fprintln(stderr, warnStyle.Render("Missing sections: "+strings.Join(result.MissingSections, ", ")))
		}
	}
	return nil
}

func describeSelection(sel config.Selection) string {
	if !sel.UseHierarchical {
		return fmt.Sprintf("sequential · %s / %s", sel.ManagerProvider, sel.ManagerModel)
	}
	return fmt.Sprintf("hierarchical · manager %s / %s · workers %s / %s",
		sel.ManagerProvider, sel.ManagerModel, sel.WorkerProvider, sel.WorkerModel)
}
