package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stationman/internal/importer"
)

// ImportServiceInterface はフィード取り込みハンドラーが必要とするサービスインターフェース。
type ImportServiceInterface interface {
	Import(ctx context.Context, req importer.Request) (*importer.Result, error)
}

// ImportHandler はフィードから番組を取り込むHTTPハンドラー。
type ImportHandler struct {
	service ImportServiceInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(service ImportServiceInterface) *ImportHandler {
	return &ImportHandler{service: service}
}

type importRequest struct {
	FeedURL         string `json:"feedUrl"`
	StartTime       string `json:"startTime"`
	DefaultDuration int    `json:"defaultDuration"`
	Limit           int    `json:"limit"`
}

type importResponse struct {
	FeedTitle string             `json:"feedTitle"`
	Programs  []*programResponse `json:"programs"`
	Skipped   int                `json:"skipped"`
}

// ImportFeed はRSS/Atomフィードのエントリーをチャンネルの番組として登録する。
// POST /api/channels/:id/import
func (h *ImportHandler) ImportFeed(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.Import(r.Context(), importer.Request{
		ChannelID:       chi.URLParam(r, "id"),
		FeedURL:         req.FeedURL,
		StartTime:       req.StartTime,
		DefaultDuration: req.DefaultDuration,
		Limit:           req.Limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, importResponse{
		FeedTitle: res.FeedTitle,
		Programs:  toProgramResponses(res.Programs),
		Skipped:   res.Skipped,
	})
}
