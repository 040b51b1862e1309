package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/crewstudio/agent/research"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// staticLister 只返回内置列表，不访问网络
type staticLister struct {
	mu   sync.Mutex
	keys map[catalog.Kind]string
}

func (l *staticLister) ListModels(_ context.Context, kind catalog.Kind, credential string) catalog.ListResult {
	l.mu.Lock()
	if l.keys == nil {
		l.keys = make(map[catalog.Kind]string)
	}
	l.keys[kind] = credential
	l.mu.Unlock()

	d, ok := catalog.Lookup(kind)
	if !ok {
		return catalog.ListResult{Provider: kind, Status: catalog.StatusUnavailable}
	}
	if kind == catalog.KindOllama {
		return catalog.ListResult{Provider: kind, Status: catalog.StatusUnavailable, Reason: "local model host not reachable"}
	}
	return catalog.ListResult{Provider: kind, Status: catalog.StatusStatic, Models: d.StaticModels()}
}

func (l *staticLister) ListAll(ctx context.Context, keys catalog.KeyFunc) []catalog.ListResult {
	var out []catalog.ListResult
	for _, k := range catalog.AllKinds() {
		out = append(out, l.ListModels(ctx, k, keys(k)))
	}
	return out
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crewstudio "+Version)
	assert.Contains(t, out, "Git Commit:")
}

func TestProvidersCmd(t *testing.T) {
	out, err := execute(t, "providers")
	require.NoError(t, err)
	for _, d := range catalog.Providers() {
		assert.Contains(t, out, d.DisplayName)
	}
	assert.Contains(t, out, "NAME")
}

func TestPrintProviders_KeyColumn(t *testing.T) {
	creds := credentials.NewStore()
	creds.SetShared(catalog.KindGroq, "gsk-test-1234567890")

	var buf bytes.Buffer
	printProviders(&buf, creds)

	lines := strings.Split(buf.String(), "\n")
	find := func(prefix string) string {
		for _, l := range lines {
			if strings.HasPrefix(l, prefix) {
				return l
			}
		}
		return ""
	}
	assert.Contains(t, find("groq"), "set")
	assert.Contains(t, find("openai"), "missing")
	assert.NotContains(t, buf.String(), "gsk-test")
}

func TestListModels(t *testing.T) {
	lister := &staticLister{}
	creds := credentials.NewStore()
	creds.Set(catalog.KindOpenAI, credentials.RoleManager, "sk-manager-0000")

	var buf bytes.Buffer
	require.NoError(t, listModels(context.Background(), &buf, lister, creds, "OpenAI", false))

	out := buf.String()
	assert.Contains(t, out, "[static]")
	assert.Contains(t, out, "> gpt-5.2-pro")
	assert.Equal(t, "sk-manager-0000", lister.keys[catalog.KindOpenAI])
}

func TestListModels_All(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listModels(context.Background(), &buf, &staticLister{}, credentials.NewStore(), "", true))

	out := buf.String()
	assert.Contains(t, out, "Anthropic (Claude)")
	assert.Contains(t, out, "no selectable model")
}

func TestListModels_UnknownProvider(t *testing.T) {
	err := listModels(context.Background(), &bytes.Buffer{}, &staticLister{}, credentials.NewStore(), "mistral", false)
	var unknown *catalog.UnknownProviderError
	require.ErrorAs(t, err, &unknown)
}

func TestModelsCmd_RequiresProviderOrAll(t *testing.T) {
	_, err := execute(t, "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--provider")
}

func TestResolveSelection(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("defaults", func(t *testing.T) {
		sel, err := resolveSelection(config.Selection{}, &runFlags{}, false)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultSelection(), sel)
	})

	t.Run("file then flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "team.yaml")
		require.NoError(t, config.SaveSelection(path, config.Selection{
			UseHierarchical: true,
			ManagerProvider: "anthropic", ManagerModel: "claude-sonnet-4-5",
			WorkerProvider: "groq", WorkerModel: "llama-3.3-70b-versatile",
		}))

		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{
			selectionFile: path,
			workerModel:   "mixtral-8x7b-32768",
		}, false)
		require.NoError(t, err)
		assert.True(t, sel.UseHierarchical)
		assert.Equal(t, "Anthropic (Claude)", sel.ManagerProvider)
		assert.Equal(t, "GROQ", sel.WorkerProvider)
		assert.Equal(t, "mixtral-8x7b-32768", sel.WorkerModel)
	})

	t.Run("hierarchical flag without worker uses manager", func(t *testing.T) {
		sel, err := resolveSelection(config.Selection{}, &runFlags{
			hierarchical:    true,
			managerProvider: "zhipu",
			managerModel:    "glm-4.6",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, "Zhipu AI (GLM)", sel.WorkerProvider)
		assert.Equal(t, "glm-4.6", sel.WorkerModel)
	})

	t.Run("default selection file is picked up", func(t *testing.T) {
		require.NoError(t, config.SaveSelection(DefaultSelectionFile, config.Selection{
			ManagerProvider: "ollama", ManagerModel: "llama3.2",
		}))
		t.Cleanup(func() { os.Remove(DefaultSelectionFile) })

		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{}, false)
		require.NoError(t, err)
		assert.Equal(t, "Ollama", sel.ManagerProvider)
	})

	t.Run("provider override without model picks its first static model", func(t *testing.T) {
		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{managerProvider: "anthropic"}, false)
		require.NoError(t, err)
		assert.Equal(t, "Anthropic (Claude)", sel.ManagerProvider)
		assert.Equal(t, catalog.MustLookup(catalog.KindAnthropic).StaticModels()[0], sel.ManagerModel)
	})

	t.Run("same provider keeps the current model", func(t *testing.T) {
		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{managerProvider: "openai"}, false)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultSelection().ManagerModel, sel.ManagerModel)
	})

	t.Run("ollama override requires a model", func(t *testing.T) {
		_, err := resolveSelection(config.DefaultSelection(), &runFlags{managerProvider: "ollama"}, false)
		require.ErrorIs(t, err, config.ErrManagerModelRequired)
		assert.Contains(t, err.Error(), "--manager-model")

		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{managerProvider: "ollama", managerModel: "llama3.2"}, false)
		require.NoError(t, err)
		assert.Equal(t, "llama3.2", sel.ManagerModel)
	})

	t.Run("worker provider override replaces the inherited model", func(t *testing.T) {
		sel, err := resolveSelection(config.DefaultSelection(), &runFlags{
			hierarchical:   true,
			workerProvider: "groq",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, "GROQ", sel.WorkerProvider)
		assert.Equal(t, "llama-3.3-70b-versatile", sel.WorkerModel)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := resolveSelection(config.Selection{}, &runFlags{managerProvider: "mistral"}, false)
		require.Error(t, err)
	})
}

func TestRunResearch_EmptyTopicFailsBeforeNetwork(t *testing.T) {
	a := newApp(testConfig(t), zap.NewNop())
	var stdout, stderr bytes.Buffer

	err := runResearch(context.Background(), a, config.DefaultSelection(), &runFlags{topic: "  "}, &stdout, &stderr)
	require.ErrorIs(t, err, research.ErrEmptyTopic)
	assert.Empty(t, stdout.String())
}

// scriptedPrompter 按标签回答，Select 的答案是选项文本
type scriptedPrompter struct {
	answers map[string]string
	asked   []string
}

func (p *scriptedPrompter) Select(label string, items []string) (int, error) {
	p.asked = append(p.asked, label)
	want, ok := p.answers[label]
	if !ok {
		return 0, nil
	}
	for i, it := range items {
		if it == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q not offered for %s", want, label)
}

func (p *scriptedPrompter) Secret(label string) (string, error) {
	p.asked = append(p.asked, label)
	return p.answers["secret"], nil
}

func TestWizard_Hierarchical(t *testing.T) {
	p := &scriptedPrompter{answers: map[string]string{
		"Process":          "Hierarchical (research director + 3 specialists)",
		"Manager provider": "Anthropic (Claude)",
		"Manager model":    "claude-sonnet-4-5",
		"Worker provider":  "Ollama",
		"secret":           "sk-ant-typed-key",
	}}
	lister := &staticLister{}
	w := &wizard{prompt: p, lister: lister, creds: credentials.NewStore(), out: &bytes.Buffer{}}

	_, err := w.run(context.Background())
	// Ollama 在测试中不可达，没有可选模型
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no selectable model")

	assert.Equal(t, "sk-ant-typed-key", lister.keys[catalog.KindAnthropic])
}

func TestWizard_Sequential(t *testing.T) {
	p := &scriptedPrompter{answers: map[string]string{
		"Process":        "Sequential (single research analyst)",
		"Agent provider": "GROQ",
	}}
	creds := credentials.NewStore()
	creds.SetShared(catalog.KindGroq, "gsk-env-key")
	w := &wizard{prompt: p, lister: &staticLister{}, creds: creds, out: &bytes.Buffer{}}

	sel, err := w.run(context.Background())
	require.NoError(t, err)
	assert.False(t, sel.UseHierarchical)
	assert.Equal(t, "GROQ", sel.ManagerProvider)
	assert.Equal(t, catalog.MustLookup(catalog.KindGroq).StaticModels()[0], sel.ManagerModel)
	assert.Empty(t, sel.WorkerProvider)
	// 已有凭据时不再询问
	for _, q := range p.asked {
		assert.NotContains(t, q, "API key")
	}
}

func TestConfigImportExport(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("simple.json", []byte(`{"provider":"groq","model":"llama-3.3-70b-versatile"}`), 0o600))

	out, err := execute(t, "config", "import", "simple.json")
	require.NoError(t, err)
	assert.Contains(t, out, DefaultSelectionFile)

	out, err = execute(t, "config", "export", "--format", "json")
	require.NoError(t, err)

	var sel config.Selection
	require.NoError(t, json.Unmarshal([]byte(out), &sel))
	assert.Equal(t, "GROQ", sel.ManagerProvider)
	assert.Equal(t, "llama-3.3-70b-versatile", sel.ManagerModel)
	assert.False(t, sel.UseHierarchical)

	_, err = execute(t, "config", "export", "--out", "team.yaml")
	require.NoError(t, err)
	data, err := os.ReadFile("team.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "manager_provider: GROQ")
}

func TestConfigImport_RejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("bad.yaml", []byte("use_hierarchical: true\nmanager_provider: mistral\nmanager_model: x\n"), 0o600))

	_, err := execute(t, "config", "import", "bad.yaml")
	require.Error(t, err)
	_, statErr := os.Stat(DefaultSelectionFile)
	assert.True(t, os.IsNotExist(statErr))
}
