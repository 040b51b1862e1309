package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
)

// =============================================================================
// 🧭 configure 命令（交互式模型选择）
// =============================================================================

// DefaultSelectionFile 是 configure 保存、run 读取的默认选择文件
const DefaultSelectionFile = "crewstudio-selection.yaml"

// prompter 抽象交互输入
type prompter interface {
	Select(label string, items []string) (int, error)
	Secret(label string) (string, error)
}

// promptUI 基于 promptui 的终端交互
type promptUI struct{}

func (promptUI) Select(label string, items []string) (int, error) {
	p := promptui.Select{Label: label, Items: items, Size: 12}
	i, _, err := p.Run()
	return i, err
}

func (promptUI) Secret(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	return p.Run()
}

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Interactively choose providers and models",
		Long: `Walks through the hierarchical toggle and the manager / worker provider and
model choices, then saves the selection. API keys typed here are used only to
list models and are never written to disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Log)
			defer logger.Sync()

			a := newApp(cfg, logger)
			w := &wizard{
				prompt: promptUI{},
				lister: a.catalog,
				creds:  a.seed.Clone(),
				out:    cmd.OutOrStdout(),
			}
			sel, err := w.run(cmd.Context())
			if err != nil {
				if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
					return fmt.Errorf("configure aborted")
				}
				return err
			}
			if err := config.SaveSelection(out, sel); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Selection saved to "+out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", DefaultSelectionFile, "Selection file to write")
	return cmd
}

// wizard 按顺序询问层级开关与各角色的 Provider / 模型
type wizard struct {
	prompt prompter
	lister modelLister
	creds  *credentials.Store
	out    io.Writer
}

func (w *wizard) run(ctx context.Context) (config.Selection, error) {
	var sel config.Selection

	mode, err := w.prompt.Select("Process", []string{
		"Sequential (single research analyst)",
		"Hierarchical (research director + 3 specialists)",
	})
	if err != nil {
		return sel, err
	}
	sel.UseHierarchical = mode == 1

	managerLabel := "Agent"
	if sel.UseHierarchical {
		managerLabel = "Manager"
	}
	sel.ManagerProvider, sel.ManagerModel, err = w.pick(ctx, managerLabel, credentials.RoleManager)
	if err != nil {
		return sel, err
	}

	if sel.UseHierarchical {
		sel.WorkerProvider, sel.WorkerModel, err = w.pick(ctx, "Worker", credentials.RoleWorker)
		if err != nil {
			return sel, err
		}
	}
	return sel.Normalize()
}

// pick 询问一个角色的 Provider 与模型
func (w *wizard) pick(ctx context.Context, label string, role credentials.Role) (string, string, error) {
	descs := catalog.Providers()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.DisplayName
	}
	i, err := w.prompt.Select(label+" provider", names)
	if err != nil {
		return "", "", err
	}
	d := descs[i]

	if d.RequiresAPIKey {
		if secret, _ := w.creds.Resolve(d.Kind, role); secret == "" {
			key, err := w.prompt.Secret(fmt.Sprintf("%s API key for %s (empty to skip)", d.DisplayName, label))
			if err != nil {
				return "", "", err
			}
			if key != "" {
				w.creds.Set(d.Kind, role, key)
			}
		}
	}

	secret, _ := w.creds.Resolve(d.Kind, role)
	res := w.lister.ListModels(ctx, d.Kind, secret)
	if !res.Selectable() {
		return "", "", fmt.Errorf("%s: no selectable model (%s)", d.DisplayName, res.Status)
	}
	if res.Reason != "" {
		fmt.Fprintln(w.out, dimStyle.Render(res.Reason))
	}
	j, err := w.prompt.Select(label+" model", res.Models)
	if err != nil {
		return "", "", err
	}
	return d.DisplayName, res.Models[j], nil
}
