package handler

import (
	"math"

	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/program"
)

// channelResponse はチャンネルのAPIレスポンス。
type channelResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// programResponse は番組のAPIレスポンス。フロントエンドに合わせてcamelCaseで返す。
type programResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	StartTime string `json:"startTime"`
	Duration  int    `json:"duration"`
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
}

// programRequest は番組の登録・編集リクエストのボディ。
// shiftScheduleがtrueの場合は後続番組を詰め直す。
type programRequest struct {
	ID            string   `json:"id"`
	ChannelID     string   `json:"channelId"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	StartTime     string   `json:"startTime"`
	Duration      *float64 `json:"duration"`
	Status        string   `json:"status"`
	URL           string   `json:"url"`
	ShiftSchedule bool     `json:"shiftSchedule"`
}

func toChannelResponse(c *model.Channel) channelResponse {
	return channelResponse{ID: c.ID, Name: c.Name}
}

func toChannelResponses(channels []*model.Channel) []channelResponse {
	out := make([]channelResponse, len(channels))
	for i, c := range channels {
		out[i] = toChannelResponse(c)
	}
	return out
}

func toProgramResponse(p *model.Program) *programResponse {
	if p == nil {
		return nil
	}
	return &programResponse{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		Title:     p.Title,
		Type:      string(p.Type),
		StartTime: p.StartTime,
		Duration:  p.Duration,
		Status:    string(p.Status),
		URL:       p.URL,
	}
}

func toProgramResponses(programs []*model.Program) []*programResponse {
	out := make([]*programResponse, len(programs))
	for i, p := range programs {
		out[i] = toProgramResponse(p)
	}
	return out
}

// toInput はリクエストボディをサービスの入力に変換する。
// durationは分単位の数値で、小数は四捨五入する。
func (req *programRequest) toInput() (program.Input, *model.APIError) {
	if req.Duration == nil {
		return program.Input{}, model.NewInvalidRequestError()
	}
	d := *req.Duration
	if d < 0 {
		return program.Input{}, model.NewInvalidDurationError(int(math.Floor(d)))
	}

	typ := model.ProgramTypeContent
	if req.Type != "" {
		t, ok := model.ParseProgramType(req.Type)
		if !ok {
			return program.Input{}, model.NewInvalidProgramTypeError(req.Type)
		}
		typ = t
	}

	var status model.ProgramStatus
	if req.Status != "" {
		s, ok := model.ParseProgramStatus(req.Status)
		if !ok {
			return program.Input{}, model.NewInvalidProgramStatusError(req.Status)
		}
		status = s
	}

	return program.Input{
		ID:        req.ID,
		ChannelID: req.ChannelID,
		Title:     req.Title,
		Type:      typ,
		StartTime: req.StartTime,
		Duration:  int(math.Round(d)),
		Status:    status,
		URL:       req.URL,
	}, nil
}
