package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stationman/internal/middleware"
	"github.com/hitoshi/stationman/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidTimeFormat,
		model.ErrCodeInvalidDuration,
		model.ErrCodeInvalidProgramType,
		model.ErrCodeInvalidProgramStatus,
		model.ErrCodeInvalidURL,
		model.ErrCodeTitleRequired,
		model.ErrCodeChannelNameRequired,
		model.ErrCodeCannotDeleteLastChannel:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeChannelNotFound, model.ErrCodeProgramNotFound:
		return http.StatusNotFound
	case model.ErrCodeProgramAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeParseFailed, model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeScheduleBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
