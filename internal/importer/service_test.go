package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/stationman/internal/cache"
	"github.com/hitoshi/stationman/internal/channel"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/program"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/security"
)

// --- モック ---

type plainGuard struct {
	validateErr error
}

func (g *plainGuard) ValidateURL(rawURL string) error { return g.validateErr }
func (g *plainGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type fixedDurations struct {
	minutes map[string]int
}

func (d *fixedDurations) Supports(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com")
}
func (d *fixedDurations) LookupMinutes(ctx context.Context, rawURL string) (int, bool) {
	m, ok := d.minutes[rawURL]
	return m, ok
}

// --- テストヘルパー ---

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Retro Clips</title>
    <link>https://example.com</link>
    <item>
      <title>Clip One</title>
      <link>https://www.youtube.com/watch?v=aaaaaaaaaaa</link>
    </item>
    <item>
      <title>Podcast Episode</title>
      <link>https://example.com/ep2</link>
      <enclosure url="https://cdn.example.com/ep2.mp3" type="audio/mpeg" length="1"/>
      <itunes:duration>00:44:30</itunes:duration>
    </item>
    <item>
      <title></title>
      <link>https://example.com/untitled</link>
    </item>
    <item>
      <title>Plain Article</title>
      <link>https://example.com/article</link>
    </item>
  </channel>
</rss>`

type fixture struct {
	svc   *Service
	store *repository.JSONStore
	srv   *httptest.Server
}

func newFixture(t *testing.T, guard SSRFValidator, handler http.HandlerFunc, existing ...*model.Program) *fixture {
	t.Helper()
	store, err := repository.OpenJSONStore(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Channels().Create(ctx, &model.Channel{ID: "CH1", Name: "WXYZ-TV (CH 7)"}); err != nil {
		t.Fatal(err)
	}
	for _, p := range existing {
		if err := store.Programs().Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sanitizer := security.NewTextSanitizer()
	locker := cache.NewLocalLocker()
	channels := channel.NewService(store.Channels(), store.Programs(), sanitizer, locker, logger)
	programs := program.NewService(store.Programs(), channels, sanitizer, locker, nil, logger)
	durations := &fixedDurations{minutes: map[string]int{"https://www.youtube.com/watch?v=aaaaaaaaaaa": 13}}

	svc := NewService(programs, store.Programs(), channels, durations, guard, nil, logger, 2*time.Second, 1<<20)
	return &fixture{svc: svc, store: store, srv: srv}
}

func serveFeed(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestService_Import_BackToBackPrograms(t *testing.T) {
	f := newFixture(t, &plainGuard{}, serveFeed(rssFeed))

	res, err := f.svc.Import(context.Background(), Request{
		ChannelID: "CH1", FeedURL: f.srv.URL, StartTime: "20:00", DefaultDuration: 15,
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.FeedTitle != "Retro Clips" {
		t.Errorf("FeedTitle = %q", res.FeedTitle)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1（タイトルなし）", res.Skipped)
	}
	if len(res.Programs) != 3 {
		t.Fatalf("取り込み件数 = %d, want 3", len(res.Programs))
	}

	want := []struct {
		title    string
		start    string
		duration int
		url      string
	}{
		{"Clip One", "20:00", 13, "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{"Podcast Episode", "20:13", 45, "https://cdn.example.com/ep2.mp3"},
		{"Plain Article", "20:58", 15, "https://example.com/article"},
	}
	for i, w := range want {
		p := res.Programs[i]
		if p.Title != w.title || p.StartTime != w.start || p.Duration != w.duration || p.URL != w.url {
			t.Errorf("Programs[%d] = {%q %s %d %q}, want %+v", i, p.Title, p.StartTime, p.Duration, p.URL, w)
		}
		if p.Type != model.ProgramTypeContent || p.ChannelID != "CH1" {
			t.Errorf("Programs[%d] type/channel = %s/%s", i, p.Type, p.ChannelID)
		}
	}
}

// 開始時刻を省略した場合はチャンネルの最後の番組の終了時刻から並べる
func TestService_Import_StartsAfterLastProgram(t *testing.T) {
	existing := &model.Program{ID: "A", ChannelID: "CH1", Title: "A", Type: model.ProgramTypeNews,
		StartTime: "06:00", Duration: 60, Status: model.ProgramStatusScheduled}
	f := newFixture(t, &plainGuard{}, serveFeed(rssFeed), existing)

	res, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Programs) != 1 || res.Programs[0].StartTime != "07:00" {
		t.Errorf("Programs = %+v, want one program at 07:00", res.Programs)
	}

	a, _ := f.store.Programs().FindByID(context.Background(), "A")
	if a.StartTime != "06:00" {
		t.Errorf("既存番組の開始時刻が変わった: %q", a.StartTime)
	}
}

func TestService_Import_EmptyChannelStartsAtMidnight(t *testing.T) {
	f := newFixture(t, &plainGuard{}, serveFeed(rssFeed))

	res, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Programs[0].StartTime != "00:00" {
		t.Errorf("StartTime = %q, want 00:00", res.Programs[0].StartTime)
	}
}

func TestService_Import_Errors(t *testing.T) {
	t.Run("SSRFブロック", func(t *testing.T) {
		f := newFixture(t, &plainGuard{validateErr: security.ErrBlockedURL}, serveFeed(rssFeed))
		_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL})
		assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)
	})

	t.Run("HTTPエラー", func(t *testing.T) {
		f := newFixture(t, &plainGuard{}, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		})
		_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL})
		assertAPIErrorCode(t, err, model.ErrCodeFetchFailed)
	})

	t.Run("フィードでない", func(t *testing.T) {
		f := newFixture(t, &plainGuard{}, serveFeed("<html><body>hello</body></html>"))
		_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL})
		assertAPIErrorCode(t, err, model.ErrCodeParseFailed)
	})

	t.Run("存在しないチャンネル", func(t *testing.T) {
		f := newFixture(t, &plainGuard{}, serveFeed(rssFeed))
		_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH9", FeedURL: f.srv.URL})
		assertAPIErrorCode(t, err, model.ErrCodeChannelNotFound)
	})

	t.Run("開始時刻不正", func(t *testing.T) {
		f := newFixture(t, &plainGuard{}, serveFeed(rssFeed))
		_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL, StartTime: "25:00"})
		assertAPIErrorCode(t, err, model.ErrCodeInvalidTimeFormat)
	})
}

func TestService_Import_DiscoversFeedFromHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head><body></body></html>`)
	})
	mux.HandleFunc("/feed.xml", serveFeed(rssFeed))
	f := newFixture(t, &plainGuard{}, mux.ServeHTTP)

	res, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL + "/", StartTime: "10:00", Limit: 1})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.FeedTitle != "Retro Clips" || len(res.Programs) != 1 {
		t.Errorf("result = %q / %d programs", res.FeedTitle, len(res.Programs))
	}
}

func TestService_Import_HTMLWithoutFeedLink(t *testing.T) {
	f := newFixture(t, &plainGuard{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>no feed</title></head><body></body></html>")
	})
	_, err := f.svc.Import(context.Background(), Request{ChannelID: "CH1", FeedURL: f.srv.URL})
	assertAPIErrorCode(t, err, model.ErrCodeFeedNotDetected)
}

func TestParseClockDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"00:44:30", 2670, true},
		{"44:30", 2670, true},
		{"1800", 1800, true},
		{"1:00:00", 3600, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
		{"-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClockDuration(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseClockDuration(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
