package schedule

import (
	"testing"
	"time"

	"github.com/hitoshi/stationman/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 17, hour, minute, 0, 0, time.UTC)
}

func TestEndTime(t *testing.T) {
	got, err := EndTime(prog("A", "CH1", "23:30", 45))
	if err != nil {
		t.Fatalf("EndTime() error = %v", err)
	}
	if got != "00:15" {
		t.Errorf("EndTime() = %q, want 00:15", got)
	}
}

func TestIsAiring(t *testing.T) {
	tests := []struct {
		name  string
		start string
		dur   int
		now   time.Time
		want  bool
	}{
		{name: "at start", start: "07:00", dur: 30, now: at(7, 0), want: true},
		{name: "middle", start: "07:00", dur: 30, now: at(7, 15), want: true},
		{name: "at end is over", start: "07:00", dur: 30, now: at(7, 30), want: false},
		{name: "before start", start: "07:00", dur: 30, now: at(6, 59), want: false},
		{name: "zero duration never airs", start: "07:00", dur: 0, now: at(7, 0), want: false},
		{name: "overnight from yesterday", start: "23:30", dur: 60, now: at(0, 15), want: true},
		{name: "overnight finished", start: "23:30", dur: 60, now: at(0, 30), want: false},
		{name: "later tonight not yet", start: "23:30", dur: 60, now: at(12, 0), want: false},
		{name: "invalid start", start: "xx:xx", dur: 60, now: at(12, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := prog("A", "CH1", tt.start, tt.dur)
			if got := IsAiring(p, tt.now); got != tt.want {
				t.Errorf("IsAiring(%s/%d, %s) = %v, want %v", tt.start, tt.dur, tt.now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestNowPlayingAndUpNext(t *testing.T) {
	programs := []*model.Program{
		prog("NEWS", "CH1", "06:00", 60),
		prog("CARTOON", "CH1", "07:00", 30),
		prog("AD", "CH1", "07:30", 2),
		prog("SITCOM", "CH1", "07:32", 28),
		prog("MUSIC", "CH2", "06:00", 120),
	}

	current := NowPlaying(programs, "CH1", at(7, 10))
	if current == nil || current.ID != "CARTOON" {
		t.Fatalf("NowPlaying = %v, want CARTOON", current)
	}
	next := UpNext(programs, "CH1", at(7, 10))
	if next == nil || next.ID != "AD" {
		t.Fatalf("UpNext = %v, want AD", next)
	}

	// 最後の番組の放送中は次がない
	if next := UpNext(programs, "CH1", at(7, 45)); next != nil {
		t.Errorf("UpNext during last program = %s, want nil", next.ID)
	}

	// 放送中の番組がない場合は次に始まる番組
	if current := NowPlaying(programs, "CH1", at(5, 0)); current != nil {
		t.Errorf("NowPlaying at 05:00 = %s, want nil", current.ID)
	}
	if next := UpNext(programs, "CH1", at(5, 0)); next == nil || next.ID != "NEWS" {
		t.Errorf("UpNext at 05:00 = %v, want NEWS", next)
	}

	if next := UpNext(programs, "CH9", at(5, 0)); next != nil {
		t.Errorf("UpNext for empty channel = %s, want nil", next.ID)
	}
}

func TestUpNext_TreatsEarlyMorningAsTomorrow(t *testing.T) {
	programs := []*model.Program{
		prog("EARLY", "CH1", "01:00", 30),
		prog("LATE", "CH1", "23:00", 30),
	}

	next := UpNext(programs, "CH1", at(22, 0))
	if next == nil || next.ID != "LATE" {
		t.Fatalf("UpNext at 22:00 = %v, want LATE", next)
	}

	next = UpNext(programs, "CH1", at(23, 10))
	if next == nil || next.ID != "EARLY" {
		t.Fatalf("UpNext at 23:10 = %v, want EARLY", next)
	}
}
