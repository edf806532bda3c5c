// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Program はチャンネルに編成された1本の番組を表す。
// StartTimeは日付・タイムゾーンを持たない "HH:MM" 形式の時刻。
type Program struct {
	ID        string
	ChannelID string
	Title     string
	Type      ProgramType
	StartTime string
	Duration  int // 分単位。削除時のシフト計算中のみ0を取り得る
	Status    ProgramStatus
	URL       string // 空の場合はカラーバー表示
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone はProgramのコピーを返す。
func (p *Program) Clone() *Program {
	c := *p
	return &c
}

// ProgramType は番組の種別を表す。スケジューリングには影響しない。
type ProgramType string

const (
	// ProgramTypeContent は通常の番組。
	ProgramTypeContent ProgramType = "content"
	// ProgramTypeAd はCM枠。
	ProgramTypeAd ProgramType = "ad"
	// ProgramTypeNews はニュース枠。
	ProgramTypeNews ProgramType = "news"
	// ProgramTypeBumper はジングル等のつなぎ枠。
	ProgramTypeBumper ProgramType = "bumper"
)

// Valid は定義済みの番組種別かを返す。
func (t ProgramType) Valid() bool {
	switch t {
	case ProgramTypeContent, ProgramTypeAd, ProgramTypeNews, ProgramTypeBumper:
		return true
	}
	return false
}

// ParseProgramType は大文字小文字と前後の空白を無視して番組種別を解析する。
func ParseProgramType(s string) (ProgramType, bool) {
	t := ProgramType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ProgramStatus は番組の放送状態を表す。
// 呼び出し側が設定し、スケジューリングのコアは変更しない。
type ProgramStatus string

const (
	// ProgramStatusScheduled は放送予定。
	ProgramStatusScheduled ProgramStatus = "scheduled"
	// ProgramStatusPlaying は放送中。
	ProgramStatusPlaying ProgramStatus = "playing"
	// ProgramStatusCompleted は放送済み。
	ProgramStatusCompleted ProgramStatus = "completed"
	// ProgramStatusError は放送エラー。
	ProgramStatusError ProgramStatus = "error"
)

// Valid は定義済みの放送状態かを返す。
func (s ProgramStatus) Valid() bool {
	switch s {
	case ProgramStatusScheduled, ProgramStatusPlaying, ProgramStatusCompleted, ProgramStatusError:
		return true
	}
	return false
}

// ParseProgramStatus は大文字小文字と前後の空白を無視して放送状態を解析する。
func ParseProgramStatus(s string) (ProgramStatus, bool) {
	st := ProgramStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}
