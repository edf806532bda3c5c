package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockVideoInfoLookup はVideoInfoLookupのモック実装。
type mockVideoInfoLookup struct {
	lookupFn func(ctx context.Context, rawURL string) (int, bool, error)
	calls    int
}

func (m *mockVideoInfoLookup) Lookup(ctx context.Context, rawURL string) (int, bool, error) {
	m.calls++
	if m.lookupFn != nil {
		return m.lookupFn(ctx, rawURL)
	}
	return 0, false, nil
}

func TestVideoInfoHandler_GetVideoInfo(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		seconds   int
		ok        bool
		err       error
		want      any
		wantCalls int
	}{
		{"取得成功", "https://youtu.be/abc", 213, true, nil, float64(213), 1},
		{"見つからない", "https://youtu.be/abc", 0, false, nil, nil, 1},
		{"取得エラーでもnull", "https://youtu.be/abc", 0, false, errors.New("timeout"), nil, 1},
		{"URL未指定", "", 0, false, nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &mockVideoInfoLookup{
				lookupFn: func(ctx context.Context, rawURL string) (int, bool, error) {
					return tt.seconds, tt.ok, tt.err
				},
			}
			var logBuf bytes.Buffer
			h := NewVideoInfoHandler(lookup, slog.New(slog.NewJSONHandler(&logBuf, nil)))

			w := httptest.NewRecorder()
			h.GetVideoInfo(w, jsonRequest(t, http.MethodPost, "/api/video-info", map[string]string{"url": tt.url}))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			got, present := body["lengthSeconds"]
			if !present {
				t.Fatal("lengthSeconds should always be present")
			}
			if got != tt.want {
				t.Errorf("lengthSeconds = %v, want %v", got, tt.want)
			}
			if lookup.calls != tt.wantCalls {
				t.Errorf("lookup calls = %d, want %d", lookup.calls, tt.wantCalls)
			}
		})
	}
}
