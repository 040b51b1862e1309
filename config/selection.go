package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/crewstudio/llm/catalog"
	"gopkg.in/yaml.v3"
)

// Selection 是用户的模型选择，也是导出/导入的配置对象。
type Selection struct {
	UseHierarchical bool   `yaml:"use_hierarchical" json:"use_hierarchical"`
	ManagerProvider string `yaml:"manager_provider" json:"manager_provider"`
	ManagerModel    string `yaml:"manager_model" json:"manager_model"`
	WorkerProvider  string `yaml:"worker_provider,omitempty" json:"worker_provider,omitempty"`
	WorkerModel     string `yaml:"worker_model,omitempty" json:"worker_model,omitempty"`
}

// selectionWire 额外接受简单形式 {provider, model}
type selectionWire struct {
	UseHierarchical bool   `yaml:"use_hierarchical" json:"use_hierarchical"`
	ManagerProvider string `yaml:"manager_provider" json:"manager_provider"`
	ManagerModel    string `yaml:"manager_model" json:"manager_model"`
	WorkerProvider  string `yaml:"worker_provider" json:"worker_provider"`
	WorkerModel     string `yaml:"worker_model" json:"worker_model"`
	Provider        string `yaml:"provider" json:"provider"`
	Model           string `yaml:"model" json:"model"`
}

func (w selectionWire) selection() Selection {
	s := Selection{
		UseHierarchical: w.UseHierarchical,
		ManagerProvider: w.ManagerProvider,
		ManagerModel:    w.ManagerModel,
		WorkerProvider:  w.WorkerProvider,
		WorkerModel:     w.WorkerModel,
	}
	if s.ManagerProvider == "" && s.ManagerModel == "" && (w.Provider != "" || w.Model != "") {
		s.ManagerProvider = w.Provider
		s.ManagerModel = w.Model
		s.UseHierarchical = false
	}
	return s
}

func (s *Selection) UnmarshalYAML(node *yaml.Node) error {
	var w selectionWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*s = w.selection()
	return nil
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var w selectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = w.selection()
	return nil
}

// DefaultSelection 使用 OpenAI 的首选模型，顺序模式。
func DefaultSelection() Selection {
	d := catalog.MustLookup(catalog.KindOpenAI)
	return Selection{
		ManagerProvider: d.DisplayName,
		ManagerModel:    d.StaticModels()[0],
	}
}

// IsZero 报告是否未做任何选择。
func (s Selection) IsZero() bool {
	return s == Selection{}
}

var (
	ErrManagerModelRequired = errors.New("manager provider and model are required")
	ErrWorkerModelRequired  = errors.New("worker provider and model are required in hierarchical mode")
)

// Validate 检查 Provider 名称是否受支持、必填模型是否齐全。
func (s Selection) Validate() error {
	if strings.TrimSpace(s.ManagerProvider) == "" || strings.TrimSpace(s.ManagerModel) == "" {
		return ErrManagerModelRequired
	}
	if _, err := catalog.ParseKind(s.ManagerProvider); err != nil {
		return fmt.Errorf("manager_provider: %w", err)
	}
	if !s.UseHierarchical {
		return nil
	}
	if strings.TrimSpace(s.WorkerProvider) == "" || strings.TrimSpace(s.WorkerModel) == "" {
		return ErrWorkerModelRequired
	}
	if _, err := catalog.ParseKind(s.WorkerProvider); err != nil {
		return fmt.Errorf("worker_provider: %w", err)
	}
	return nil
}

// Normalize 把 Provider 名称统一为显示名；层级模式下未给出的 worker 沿用 manager。
func (s Selection) Normalize() (Selection, error) {
	s.ManagerModel = strings.TrimSpace(s.ManagerModel)
	s.WorkerModel = strings.TrimSpace(s.WorkerModel)
	if s.UseHierarchical && s.WorkerProvider == "" && s.WorkerModel == "" {
		s.WorkerProvider, s.WorkerModel = s.ManagerProvider, s.ManagerModel
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	s.ManagerProvider = displayName(s.ManagerProvider)
	if s.UseHierarchical {
		s.WorkerProvider = displayName(s.WorkerProvider)
	} else {
		s.WorkerProvider, s.WorkerModel = "", ""
	}
	return s, nil
}

// ManagerKind 返回 manager 的 Provider 类型。
func (s Selection) ManagerKind() (catalog.Kind, error) { return catalog.ParseKind(s.ManagerProvider) }

// WorkerKind 返回 worker 的 Provider 类型。
func (s Selection) WorkerKind() (catalog.Kind, error) { return catalog.ParseKind(s.WorkerProvider) }

func displayName(provider string) string {
	k, err := catalog.ParseKind(provider)
	if err != nil {
		return provider
	}
	return catalog.MustLookup(k).DisplayName
}

// =============================================================================
// 📤 导出 / 📥 导入
// =============================================================================

// ExportSelection 以 yaml 或 json 写出选择。
func ExportSelection(w io.Writer, s Selection, format string) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode selection: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ImportSelection 读取 yaml 或 json 格式的选择并校验。
func ImportSelection(r io.Reader) (Selection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Selection{}, fmt.Errorf("read selection: %w", err)
	}
	var s Selection
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return Selection{}, fmt.Errorf("parse selection: %w", err)
	}
	return s.Normalize()
}

// SaveSelection 把选择写入文件，扩展名 .json 使用 JSON，其余使用 YAML。
func SaveSelection(path string, s Selection) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create selection dir: %w", err)
		}
	}
	var buf bytes.Buffer
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	if err := ExportSelection(&buf, s, format); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// LoadSelection 从文件读取选择。
func LoadSelection(path string) (Selection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Selection{}, fmt.Errorf("open selection: %w", err)
	}
	defer f.Close()
	return ImportSelection(f)
}
