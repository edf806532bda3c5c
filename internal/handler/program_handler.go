package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/program"
)

// ProgramServiceInterface は番組ハンドラーが必要とするサービスインターフェース。
type ProgramServiceInterface interface {
	List(ctx context.Context) ([]*model.Program, error)
	Get(ctx context.Context, id string) (*model.Program, error)
	Create(ctx context.Context, in program.Input, shift bool) (*model.Program, error)
	Update(ctx context.Context, id string, in program.Input, shift bool) (*model.Program, error)
	Delete(ctx context.Context, id string, shift bool) error
	SetStatus(ctx context.Context, id string, status model.ProgramStatus) (*model.Program, error)
	OnAir(ctx context.Context, channelID string, now time.Time) (*program.OnAirInfo, error)
}

// ProgramHandler は番組表のHTTPハンドラー。
type ProgramHandler struct {
	service ProgramServiceInterface
	now     func() time.Time
}

// NewProgramHandler はProgramHandlerを生成する。
func NewProgramHandler(service ProgramServiceInterface) *ProgramHandler {
	return &ProgramHandler{service: service, now: time.Now}
}

// statusRequest は放送状態更新リクエストのボディ。
type statusRequest struct {
	Status string `json:"status"`
}

// onAirResponse は放送中・次の番組のレスポンス。
type onAirResponse struct {
	ChannelID string           `json:"channelId"`
	Current   *programResponse `json:"current"`
	Next      *programResponse `json:"next"`
}

// ListPrograms は全チャンネルの番組を開始時刻順で返す。
// GET /api/programs
func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramResponses(programs))
}

// GetProgram は番組を返す。
// GET /api/programs/:id
func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramResponse(p))
}

// CreateProgram は番組を登録する。
// POST /api/programs
func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, apiErr := req.toInput()
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	p, err := h.service.Create(r.Context(), in, req.ShiftSchedule)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgramResponse(p))
}

// UpdateProgram は番組を編集する。放送状態は変更しない。
// PUT /api/programs/:id
func (h *ProgramHandler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, apiErr := req.toInput()
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in, req.ShiftSchedule)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramResponse(p))
}

// DeleteProgram は番組を削除する。
// ?shiftSchedule=true の場合は後続番組を前に詰める。
// DELETE /api/programs/:id
func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	shift, _ := strconv.ParseBool(r.URL.Query().Get("shiftSchedule"))

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), shift); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus は番組の放送状態を更新する。
// PUT /api/programs/:id/status
func (h *ProgramHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, ok := model.ParseProgramStatus(req.Status)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidProgramStatusError(req.Status))
		return
	}

	p, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramResponse(p))
}

// OnAir はチャンネルで放送中の番組と次の番組を返す。
// GET /api/channels/:id/on-air
func (h *ProgramHandler) OnAir(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.OnAir(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onAirResponse{
		ChannelID: info.ChannelID,
		Current:   toProgramResponse(info.Current),
		Next:      toProgramResponse(info.Next),
	})
}
