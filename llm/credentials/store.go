package credentials

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/crewstudio/llm/catalog"
)

// Role 决定凭据后缀与温度策略。
type Role string

const (
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
	RoleSingle  Role = "single"
)

// ParseRole accepts manager, worker or single (case-insensitive).
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleManager:
		return RoleManager, nil
	case RoleWorker:
		return RoleWorker, nil
	case RoleSingle:
		return RoleSingle, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// slot 是凭据的存储槽位；single 与 worker 共用 WORKER 槽位。
func (r Role) slot() string {
	if r == RoleManager {
		return "MANAGER"
	}
	return "WORKER"
}

// EnvSuffix 返回环境变量后缀（MANAGER 或 WORKER）。
func (r Role) EnvSuffix() string { return r.slot() }

// Source 说明 Resolve 的命中来源。
type Source string

const (
	SourceRole    Source = "role"
	SourceShared  Source = "shared"
	SourceMissing Source = "missing"
)

type scopedKey struct {
	kind catalog.Kind
	slot string
}

// Store 保存单个会话的凭据，并发安全。
// 角色凭据优先于 Provider 共享凭据；写入只覆盖同一个键。
type Store struct {
	mu        sync.RWMutex
	scoped    map[scopedKey]string
	shared    map[catalog.Kind]string
	searchKey string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		scoped: make(map[scopedKey]string),
		shared: make(map[catalog.Kind]string),
	}
}

// Set 写入角色凭据。空白 secret 会被忽略。
func (s *Store) Set(kind catalog.Kind, role Role, secret string) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoped[scopedKey{kind, role.slot()}] = secret
}

// SetShared 写入 Provider 级共享凭据。
func (s *Store) SetShared(kind catalog.Kind, secret string) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared[kind] = secret
}

// SetSearchKey stores the web search (Serper) key.
func (s *Store) SetSearchKey(secret string) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchKey = secret
}

// SearchKey returns the web search key, or "".
func (s *Store) SearchKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchKey
}

// Resolve 返回 (kind, role) 的凭据：角色凭据 → 共享凭据 → missing。
// missing 不是错误，调用方应不带凭据继续，由 Provider 自己报告鉴权失败。
func (s *Store) Resolve(kind catalog.Kind, role Role) (string, Source) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.scoped[scopedKey{kind, role.slot()}]; ok {
		return v, SourceRole
	}
	if v, ok := s.shared[kind]; ok {
		return v, SourceShared
	}
	return "", SourceMissing
}

// ListingKey 返回列模型时使用的凭据（manager 优先，其次 worker 与共享）。
func (s *Store) ListingKey(kind catalog.Kind) string {
	if v, src := s.Resolve(kind, RoleManager); src != SourceMissing {
		return v
	}
	v, _ := s.Resolve(kind, RoleWorker)
	return v
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewStore()
	for k, v := range s.scoped {
		out.scoped[k] = v
	}
	for k, v := range s.shared {
		out.shared[k] = v
	}
	out.searchKey = s.searchKey
	return out
}

// Entry 是脱敏后的凭据概览。
type Entry struct {
	Provider string `json:"provider"`
	Scope    string `json:"scope"` // shared / manager / worker
	Masked   string `json:"masked"`
}

// Snapshot returns a masked, sorted view suitable for display.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.scoped)+len(s.shared)+1)
	for k, v := range s.shared {
		out = append(out, Entry{Provider: k.String(), Scope: "shared", Masked: Mask(v)})
	}
	for k, v := range s.scoped {
		out = append(out, Entry{Provider: k.kind.String(), Scope: strings.ToLower(k.slot), Masked: Mask(v)})
	}
	if s.searchKey != "" {
		out = append(out, Entry{Provider: "serper", Scope: "shared", Masked: Mask(s.searchKey)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

func (s *Store) String() string {
	return fmt.Sprintf("credentials.Store{%d keys}", len(s.Snapshot()))
}

// MarshalJSON never exposes secrets.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Mask 保留末尾四位。
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
