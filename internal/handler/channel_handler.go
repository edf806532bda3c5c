package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stationman/internal/model"
)

// ChannelServiceInterface はチャンネルハンドラーが必要とするサービスインターフェース。
type ChannelServiceInterface interface {
	List(ctx context.Context) ([]*model.Channel, error)
	Create(ctx context.Context, name string) (*model.Channel, error)
	Update(ctx context.Context, id, name string) (*model.Channel, error)
	// Delete はチャンネルを削除し、番組の移動先チャンネルIDと移動件数を返す。
	Delete(ctx context.Context, id string) (string, int, error)
}

// ChannelHandler はチャンネル管理のHTTPハンドラー。
type ChannelHandler struct {
	service ChannelServiceInterface
}

// NewChannelHandler はChannelHandlerを生成する。
func NewChannelHandler(service ChannelServiceInterface) *ChannelHandler {
	return &ChannelHandler{service: service}
}

// channelRequest はチャンネルの作成・名前変更リクエストのボディ。
type channelRequest struct {
	Name string `json:"name"`
}

// ListChannels はチャンネル一覧を返す。
// GET /api/channels
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponses(channels))
}

// CreateChannel はチャンネルを作成する。
// POST /api/channels
func (h *ChannelHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChannelResponse(ch))
}

// UpdateChannel はチャンネル名を変更する。
// PUT /api/channels/:id
func (h *ChannelHandler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponse(ch))
}

// DeleteChannel はチャンネルを削除する。所属していた番組は先頭のチャンネルへ移動する。
// DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
