package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/types"
	"go.uber.org/zap"
)

// ModelLister 是 *catalog.Catalog 的查询面
type ModelLister interface {
	ListModels(ctx context.Context, kind catalog.Kind, credential string) catalog.ListResult
	ListAll(ctx context.Context, keys catalog.KeyFunc) []catalog.ListResult
}

// CatalogHandler 暴露 Provider 目录与模型列表
type CatalogHandler struct {
	lister ModelLister
	logger *zap.Logger
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(lister ModelLister, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{lister: lister, logger: logger.With(zap.String("handler", "catalog"))}
}

// ProviderInfo 是 /providers 的单项
type ProviderInfo struct {
	catalog.Descriptor
	HasCredential bool   `json:"has_credential"`
}

// HandleProviders 处理 GET /api/v1/providers
func (h *CatalogHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	out := make([]ProviderInfo, 0, len(catalog.AllKinds()))
	for _, d := range catalog.Providers() {
		info := ProviderInfo{Descriptor: d}
		if sess != nil && d.RequiresAPIKey {
			info.HasCredential = sess.Credentials.ListingKey(d.Kind) != ""
		}
		out = append(out, info)
	}
	WriteSuccess(w, out)
}

// HandleModels 处理 GET /api/v1/models?provider=X
//
// 网络失败体现在 status 字段中，HTTP 层始终返回 200。
func (h *CatalogHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	if name == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "provider query parameter is required", h.logger)
		return
	}
	kind, err := catalog.ParseKind(name)
	if err != nil {
		WriteAppError(w, err, h.logger)
		return
	}

	result := h.lister.ListModels(r.Context(), kind, listingKey(r.Context(), kind))
	if !result.Selectable() {
		h.logger.Info("no selectable model",
			zap.String("provider", kind.String()),
			zap.String("status", string(result.Status)),
			zap.String("reason", result.Reason),
		)
	}
	WriteSuccess(w, result)
}

// HandleModelsAll 处理 GET /api/v1/models/all
func (h *CatalogHandler) HandleModelsAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := h.lister.ListAll(ctx, func(k catalog.Kind) string { return listingKey(ctx, k) })
	WriteSuccess(w, results)
}

// listingKey 列表查询使用会话凭据（manager 优先，其次共享）
func listingKey(ctx context.Context, kind catalog.Kind) string {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return ""
	}
	return sess.Credentials.ListingKey(kind)
}
