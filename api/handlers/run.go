package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/crewstudio/agent/research"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/internal/session"
	"github.com/BaSui01/crewstudio/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// CrewRunner 是 *research.Runner 的执行面
type CrewRunner interface {
	Run(ctx context.Context, spec *research.CrewSpec, opts ...research.RunOption) (*research.RunResult, error)
}

// RunRequest 启动一次研究运行；selection 为空时使用会话中保存的选择
type RunRequest struct {
	Topic     string            `json:"topic"`
	Selection *config.Selection `json:"selection,omitempty"`
}

// StreamMessage 是 /runs/stream 推送的单条消息
//
//	type=event  → Event
//	type=result → Result（最后一条）
//	type=error  → Error（最后一条）
type StreamMessage struct {
	Type   string              `json:"type"`
	Event  *research.RunEvent  `json:"event,omitempty"`
	Result *research.RunResult `json:"result,omitempty"`
	Error  *ErrorInfo          `json:"error,omitempty"`
}

// RunHandler 组装并执行研究团队
type RunHandler struct {
	models         research.ModelBuilder
	runner         CrewRunner
	originPatterns []string
	// started 在运行开始时调用，返回值在运行结束时调用
	started func() func()
	logger  *zap.Logger
}

// NewRunHandler 创建运行处理器
func NewRunHandler(models research.ModelBuilder, runner CrewRunner, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		models: models,
		runner: runner,
		logger: logger.With(zap.String("handler", "run")),
	}
}

// WithOriginPatterns 设置允许的 WebSocket Origin
func (h *RunHandler) WithOriginPatterns(patterns []string) *RunHandler {
	h.originPatterns = patterns
	return h
}

// OnStart 注册运行开始回调（进行中运行数指标）
func (h *RunHandler) OnStart(fn func() func()) { h.started = fn }

// assemble 为会话构建 CrewSpec
func (h *RunHandler) assemble(sess *session.Session, req RunRequest) (*research.CrewSpec, error) {
	sel := sess.Selection()
	if req.Selection != nil {
		sel = *req.Selection
	}
	return research.Assemble(sel, req.Topic, research.Deps{
		Models:      h.models,
		Credentials: sess.Credentials,
	})
}

func (h *RunHandler) run(ctx context.Context, spec *research.CrewSpec, opts ...research.RunOption) (*research.RunResult, error) {
	if h.started != nil {
		done := h.started()
		defer done()
	}
	return h.runner.Run(ctx, spec, opts...)
}

// HandleRun 处理 POST /api/v1/runs（阻塞直到运行结束）
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "no session", h.logger)
		return
	}
	var req RunRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	spec, err := h.assemble(sess, req)
	if err != nil {
		WriteAppError(w, err, h.logger)
		return
	}

	result, err := h.run(r.Context(), spec)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			h.logger.Info("run cancelled by client", zap.String("session_id", sess.ID))
			return
		}
		WriteAppError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleStream 处理 GET /api/v1/runs/stream。
// 客户端在连接建立后发送一条 RunRequest，服务端依次推送事件与最终结果。
func (h *RunHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "no session", h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	var req RunRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.logger.Debug("read run request failed", zap.Error(err))
		conn.Close(websocket.StatusUnsupportedData, "expected run request")
		return
	}
	// 之后只处理 ping/close 帧；客户端关闭时 gone 结束，运行本身继续
	gone := conn.CloseRead(ctx)
	stream := &eventStream{conn: conn, gone: gone, logger: h.logger}

	spec, err := h.assemble(sess, req)
	if err != nil {
		stream.fail(ctx, err)
		conn.Close(websocket.StatusNormalClosure, "invalid run request")
		return
	}

	result, err := h.run(ctx, spec, research.WithObserver(func(ev research.RunEvent) {
		stream.send(ctx, StreamMessage{Type: "event", Event: &ev})
	}))
	if err != nil {
		stream.fail(ctx, err)
		conn.Close(websocket.StatusNormalClosure, "run failed")
		return
	}

	stream.send(ctx, StreamMessage{Type: "result", Result: result})
	conn.Close(websocket.StatusNormalClosure, "done")
}

// eventStream 串行化写操作，WebSocket 不支持并发写
type eventStream struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	gone   context.Context
	broken bool
	logger *zap.Logger
}

const streamWriteTimeout = 10 * time.Second

func (s *eventStream) send(ctx context.Context, msg StreamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	if s.gone != nil && s.gone.Err() != nil {
		s.broken = true
		s.logger.Debug("stream client went away, dropping events")
		return
	}
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, s.conn, msg); err != nil {
		// 客户端断开后继续运行，结果仍会写入报告文件
		s.broken = true
		s.logger.Debug("stream write failed", zap.Error(err))
	}
}

func (s *eventStream) fail(ctx context.Context, err error) {
	apiErr := ToAPIError(err)
	info := &ErrorInfo{
		Code:      string(apiErr.Code),
		Message:   apiErr.Message,
		Retryable: apiErr.Retryable,
	}
	if apiErr.Cause != nil {
		info.Details = apiErr.Cause.Error()
	}
	s.send(ctx, StreamMessage{Type: "error", Error: info})
}

// bearerFromQuery 浏览器无法为 WebSocket 设置请求头，升级请求允许 access_token 参数
func bearerFromQuery(r *http.Request) string {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return ""
	}
	return r.URL.Query().Get("access_token")
}
