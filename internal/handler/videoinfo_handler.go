package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// VideoInfoLookup は動画の再生時間を取得するインターフェース。
type VideoInfoLookup interface {
	Lookup(ctx context.Context, rawURL string) (int, bool, error)
}

// VideoInfoHandler は動画情報取得のHTTPハンドラー。
type VideoInfoHandler struct {
	lookup VideoInfoLookup
	logger *slog.Logger
}

// NewVideoInfoHandler はVideoInfoHandlerを生成する。
func NewVideoInfoHandler(lookup VideoInfoLookup, logger *slog.Logger) *VideoInfoHandler {
	return &VideoInfoHandler{lookup: lookup, logger: logger}
}

type videoInfoRequest struct {
	URL string `json:"url"`
}

// videoInfoResponse は再生時間（秒）。取得できなかった場合はnull。
type videoInfoResponse struct {
	LengthSeconds *int `json:"lengthSeconds"`
}

// GetVideoInfo は動画URLの再生時間を返す。
// 取得に失敗した場合もエラーステータスにはせず lengthSeconds: null を返す。
// POST /api/video-info
func (h *VideoInfoHandler) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req videoInfoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var resp videoInfoResponse
	if u := strings.TrimSpace(req.URL); u != "" {
		seconds, ok, err := h.lookup.Lookup(r.Context(), u)
		switch {
		case err != nil:
			h.logger.Info("動画情報を取得できませんでした",
				slog.String("url", u),
				slog.String("error", err.Error()),
			)
		case ok:
			resp.LengthSeconds = &seconds
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
