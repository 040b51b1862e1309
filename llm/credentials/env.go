package credentials

import (
	"os"

	"github.com/BaSui01/crewstudio/llm/catalog"
)

// SearchKeyEnv 是网页搜索工具（Serper）的环境变量。
const SearchKeyEnv = "SERPER_API_KEY"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// FromEnv 在进程启动时读取一次环境变量，之后会话只使用克隆出的 Store。
// 读取 <P>_API_KEY 与 <P>_API_KEY_MANAGER / _WORKER。
func FromEnv(lookup LookupFunc) *Store {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := NewStore()
	for _, d := range catalog.Providers() {
		if d.EnvPrefix == "" {
			continue
		}
		base := d.EnvPrefix + "_API_KEY"
		if v, ok := lookup(base); ok {
			s.SetShared(d.Kind, v)
		}
		for _, r := range []Role{RoleManager, RoleWorker} {
			if v, ok := lookup(base + "_" + r.EnvSuffix()); ok {
				s.Set(d.Kind, r, v)
			}
		}
	}
	if v, ok := lookup(SearchKeyEnv); ok {
		s.SetSearchKey(v)
	}
	return s
}

// EnvNames 列出某 Provider 会读取的环境变量，供 CLI 提示使用。
func EnvNames(kind catalog.Kind) []string {
	d, ok := catalog.Lookup(kind)
	if !ok || d.EnvPrefix == "" {
		return nil
	}
	base := d.EnvPrefix + "_API_KEY"
	return []string{base, base + "_MANAGER", base + "_WORKER"}
}
