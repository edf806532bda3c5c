package schedule

import (
	"slices"
	"time"

	"github.com/hitoshi/stationman/internal/model"
)

// overnightThresholdHours は前日・翌日の番組とみなす時差（時間）。
const overnightThresholdHours = 12

// EndTime は番組の終了時刻を "HH:MM" 形式で返す。
func EndTime(p *model.Program) (string, error) {
	return AddMinutes(p.StartTime, float64(p.Duration))
}

// IsAiring は番組がnowの時点で放送中かを返す。
// 開始時刻がnowより12時間を超えて先にある場合は前日に開始した番組とみなし、
// 日付をまたいで放送中の深夜番組を判定する。
func IsAiring(p *model.Program, now time.Time) bool {
	c, err := ParseClock(p.StartTime)
	if err != nil {
		return false
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), 0, 0, now.Location())
	if c.Hour() > now.Hour() && c.Hour()-now.Hour() > overnightThresholdHours {
		start = start.AddDate(0, 0, -1)
	}
	end := start.Add(time.Duration(p.Duration) * time.Minute)

	return !now.Before(start) && now.Before(end)
}

// NowPlaying はchannelIDでnowの時点に放送中の番組を返す。該当がなければnilを返す。
func NowPlaying(programs []*model.Program, channelID string, now time.Time) *model.Program {
	for _, p := range ChannelTimeline(programs, channelID) {
		if IsAiring(p, now) {
			return p
		}
	}
	return nil
}

// UpNext はchannelIDでnowの次に放送される番組を返す。該当がなければnilを返す。
//
// 並び順は文字列順ではなくnowを基準にした相対時刻で決める。開始時刻がnowより
// 12時間を超えて前にある場合は翌日の番組とみなす。
// 放送中の番組があればその次の番組を、なければnow以降に始まる最初の番組を返す。
func UpNext(programs []*model.Program, channelID string, now time.Time) *model.Program {
	type entry struct {
		program *model.Program
		start   time.Time
	}

	var entries []entry
	for _, p := range programs {
		if p.ChannelID != channelID {
			continue
		}
		c, err := ParseClock(p.StartTime)
		if err != nil {
			continue
		}
		entries = append(entries, entry{program: p, start: relativeStart(c, now)})
	}
	if len(entries) == 0 {
		return nil
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return a.start.Compare(b.start)
	})

	if current := NowPlaying(programs, channelID, now); current != nil {
		idx := slices.IndexFunc(entries, func(e entry) bool { return e.program.ID == current.ID })
		if idx >= 0 && idx < len(entries)-1 {
			return entries[idx+1].program
		}
		return nil
	}

	for _, e := range entries {
		if e.start.After(now) {
			return e.program
		}
	}
	return nil
}

func relativeStart(c Clock, now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), 0, 0, now.Location())
	if c.Hour() < now.Hour() && now.Hour()-c.Hour() > overnightThresholdHours {
		start = start.AddDate(0, 0, 1)
	}
	return start
}
