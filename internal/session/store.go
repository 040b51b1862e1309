package session

import (
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/credentials"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ErrNotFound 表示会话不存在或已过期。
var ErrNotFound = errors.New("session not found or expired")

// Session 是单个用户的配置上下文：凭据与模型选择只属于这个会话。
type Session struct {
	ID          string             `json:"session_id"`
	Credentials *credentials.Store `json:"credentials"`
	CreatedAt   time.Time          `json:"created_at"`

	mu        sync.RWMutex
	selection config.Selection
}

// Selection 返回当前模型选择。
func (s *Session) Selection() config.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// SetSelection 规范化并保存模型选择。
func (s *Session) SetSelection(sel config.Selection) (config.Selection, error) {
	norm, err := sel.Normalize()
	if err != nil {
		return sel, err
	}
	s.mu.Lock()
	s.selection = norm
	s.mu.Unlock()
	return norm, nil
}

// Store 在内存中保存会话，按 LRU 淘汰并在 TTL 后过期。
type Store struct {
	cache  *expirable.LRU[string, *Session]
	seed   *credentials.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore 创建会话存储。seed 是进程启动时从环境读取的凭据，每个新会话得到它的副本。
func NewStore(cfg config.SessionConfig, seed *credentials.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = config.DefaultSessionConfig().MaxSessions
	}
	if cfg.TTL <= 0 {
		cfg.TTL = config.DefaultSessionConfig().TTL
	}
	if seed == nil {
		seed = credentials.NewStore()
	}
	logger = logger.With(zap.String("component", "session_store"))
	onEvict := func(id string, _ *Session) {
		logger.Debug("session evicted", zap.String("session_id", id))
	}
	return &Store{
		cache:  expirable.NewLRU[string, *Session](cfg.MaxSessions, onEvict, cfg.TTL),
		seed:   seed,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// TTL 返回会话有效期。
func (st *Store) TTL() time.Duration { return st.ttl }

// Create 新建会话，凭据从 seed 克隆，选择为默认值。
func (st *Store) Create() *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Credentials: st.seed.Clone(),
		CreatedAt:   time.Now().UTC(),
		selection:   config.DefaultSelection(),
	}
	st.cache.Add(s.ID, s)
	st.logger.Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get 返回未过期的会话。
func (st *Store) Get(id string) (*Session, error) {
	s, ok := st.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes the session and reports whether it existed.
func (st *Store) Delete(id string) bool {
	return st.cache.Remove(id)
}

// Len 返回当前会话数量（含尚未清理的过期会话）。
func (st *Store) Len() int { return st.cache.Len() }
