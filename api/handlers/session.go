package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/internal/session"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
	"github.com/BaSui01/crewstudio/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔐 会话 Handler
// =============================================================================

type sessionCtxKey struct{}

// SessionFromContext 取出 Authenticate 注入的会话
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*session.Session)
	return s, ok && s != nil
}

// SessionHandler 管理会话生命周期、凭据与模型选择
type SessionHandler struct {
	store  *session.Store
	tokens *session.TokenIssuer
	// onChange 在会话数量变化后调用（更新指标）
	onChange func(n int)
	logger   *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(store *session.Store, tokens *session.TokenIssuer, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		store:  store,
		tokens: tokens,
		logger: logger.With(zap.String("handler", "session")),
	}
}

// OnChange 注册会话数量变化回调
func (h *SessionHandler) OnChange(fn func(n int)) { h.onChange = fn }

func (h *SessionHandler) changed() {
	if h.onChange != nil {
		h.onChange(h.store.Len())
	}
}

// SessionResponse 是创建会话的响应
type SessionResponse struct {
	SessionID string              `json:"session_id"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Selection config.Selection    `json:"selection"`
	Keys      []credentials.Entry `json:"credentials"`
}

// CredentialRequest 设置一个 Provider 凭据；role 为空表示共享凭据。
// provider 为 "serper" 时设置搜索密钥。
type CredentialRequest struct {
	Provider string `json:"provider"`
	Role     string `json:"role,omitempty"`
	APIKey   string `json:"api_key"`
}

// =============================================================================
// 🛡️ 认证
// =============================================================================

// Authenticate 从 Authorization: Bearer <token> 解析会话，失败返回 401
func (h *SessionHandler) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok && raw == "" {
			token = bearerFromQuery(r)
			ok = token != ""
		}
		if !ok || strings.TrimSpace(token) == "" {
			WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized,
				"missing or malformed Authorization header", h.logger)
			return
		}

		id, err := h.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			h.logger.Debug("token rejected", zap.Error(err))
			WriteAppError(w, err, h.logger)
			return
		}
		sess, err := h.store.Get(id)
		if err != nil {
			WriteAppError(w, err, h.logger)
			return
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, sess)
		ctx = types.WithSessionID(ctx, sess.ID)
		next(w, r.WithContext(ctx))
	}
}

// mustSession 只在 Authenticate 之后调用
func (h *SessionHandler) mustSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "no session", h.logger)
	}
	return sess, ok
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleCreate 处理 POST /api/v1/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	token, expiresAt, err := h.tokens.Issue(sess.ID)
	if err != nil {
		h.store.Delete(sess.ID)
		WriteAppError(w, err, h.logger)
		return
	}
	h.changed()

	h.logger.Info("session created", zap.String("session_id", sess.ID))
	WriteCreated(w, SessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		Selection: sess.Selection(),
		Keys:      sess.Credentials.Snapshot(),
	})
}

// HandleDelete 处理 DELETE /api/v1/sessions/current
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	h.store.Delete(sess.ID)
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCredential 处理 PUT /api/v1/credentials
func (h *SessionHandler) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	var req CredentialRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "api_key is required", h.logger)
		return
	}

	if strings.EqualFold(strings.TrimSpace(req.Provider), "serper") {
		sess.Credentials.SetSearchKey(req.APIKey)
		WriteSuccess(w, sess.Credentials.Snapshot())
		return
	}

	kind, err := catalog.ParseKind(req.Provider)
	if err != nil {
		WriteAppError(w, err, h.logger)
		return
	}
	if !catalog.MustLookup(kind).RequiresAPIKey {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			kind.String()+" does not use an API key", h.logger)
		return
	}

	if req.Role == "" {
		sess.Credentials.SetShared(kind, req.APIKey)
	} else {
		role, err := credentials.ParseRole(req.Role)
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
			return
		}
		sess.Credentials.Set(kind, role, req.APIKey)
	}

	h.logger.Debug("credential set",
		zap.String("session_id", sess.ID),
		zap.String("provider", kind.String()),
		zap.String("role", req.Role),
	)
	WriteSuccess(w, sess.Credentials.Snapshot())
}

// HandleGetSelection 处理 GET /api/v1/selection
func (h *SessionHandler) HandleGetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, sess.Selection())
}

// HandlePutSelection 处理 PUT /api/v1/selection
func (h *SessionHandler) HandlePutSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	var sel config.Selection
	if err := DecodeJSONBody(w, r, &sel, h.logger); err != nil {
		return
	}
	normalized, err := sess.SetSelection(sel)
	if err != nil {
		WriteAppError(w, err, h.logger)
		return
	}
	WriteSuccess(w, normalized)
}
