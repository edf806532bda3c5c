package schedule

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hitoshi/stationman/internal/model"
)

// Result はShiftの実行結果。
type Result struct {
	// Timeline は対象チャンネルの番組を開始時刻の文字列順に並べたもの。
	Timeline []*model.Program
	// AnchorIndex はTimeline内の起点番組の位置。見つからない場合は-1。
	AnchorIndex int
	// Moved は開始時刻が実際に書き換えられた番組。
	Moved []*model.Program
}

// Found は起点番組がタイムライン上に存在したかを返す。
func (r Result) Found() bool {
	return r.AnchorIndex >= 0
}

// ChannelTimeline はprogramsのうちchannelIDに属する番組を抽出し、
// StartTimeの文字列比較で安定ソートしたスライスを返す。
//
// ゼロ埋めの "HH:MM" の文字列比較は同一日内の時系列順と一致するが、
// 日付をまたぐ編成（23:50の次に00:10など）は考慮しない。
func ChannelTimeline(programs []*model.Program, channelID string) []*model.Program {
	timeline := make([]*model.Program, 0, len(programs))
	for _, p := range programs {
		if p.ChannelID == channelID {
			timeline = append(timeline, p)
		}
	}
	slices.SortStableFunc(timeline, func(a, b *model.Program) int {
		return strings.Compare(a.StartTime, b.StartTime)
	})
	return timeline
}

// Shift はchannelIDのタイムラインにおいて、anchorIDの番組より後ろの番組の開始時刻を
// 直前の番組の終了時刻へ順に詰め直す（カスケード）。
//
//   - 起点番組とそれより前の番組、他チャンネルの番組は変更しない
//   - 各番組の開始時刻は、同じ走査で書き換え済みの直前番組の値から計算する
//   - 起点番組がタイムラインに存在しない場合は何もしない（エラーではない）
//   - 番組の追加・削除は行わず、StartTimeのみを書き換える
//
// 途中の時刻計算でエラーが発生した場合は、どの番組も変更せずにエラーを返す。
func Shift(programs []*model.Program, channelID, anchorID string) (Result, error) {
	timeline := ChannelTimeline(programs, channelID)
	anchor := slices.IndexFunc(timeline, func(p *model.Program) bool {
		return p.ID == anchorID
	})

	res := Result{Timeline: timeline, AnchorIndex: anchor}
	if anchor < 0 {
		return res, nil
	}

	// 全件の新しい開始時刻を先に計算し、成功した場合のみ書き込む
	next := make([]string, len(timeline))
	prevStart, prevDuration := timeline[anchor].StartTime, timeline[anchor].Duration
	for i := anchor + 1; i < len(timeline); i++ {
		start, err := AddMinutes(prevStart, float64(prevDuration))
		if err != nil {
			return Result{Timeline: timeline, AnchorIndex: anchor}, fmt.Errorf("program %s: %w", timeline[i-1].ID, err)
		}
		next[i] = start
		prevStart, prevDuration = start, timeline[i].Duration
	}

	for i := anchor + 1; i < len(timeline); i++ {
		if timeline[i].StartTime != next[i] {
			timeline[i].StartTime = next[i]
			res.Moved = append(res.Moved, timeline[i])
		}
	}

	return res, nil
}
