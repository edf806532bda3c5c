// Package schedule は番組表のスケジューリングコアを提供する。
//
// 時刻は日付・タイムゾーンを持たない "HH:MM" 形式で扱い、
// 24時をまたぐ加算は00時に折り返す（日数の概念は持たない）。
// I/O・ロック・共有状態を一切持たない純粋な計算のみを行う。
package schedule

import (
	"errors"
	"fmt"
	"math"
)

// MinutesPerDay は1日の分数。
const MinutesPerDay = 24 * 60

var (
	// ErrInvalidTimeFormat は "HH:MM" として解釈できない時刻を表す。
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrInvalidMinutes はNaNや無限大など加算できない分数を表す。
	ErrInvalidMinutes = errors.New("invalid minutes")
)

// Clock は1日の中の時刻（分精度）を表す。
type Clock struct {
	hour   int
	minute int
}

// ParseClock は "HH:MM" 形式の文字列をClockに変換する。
// HHは00〜23、MMは00〜59のゼロ埋め2桁のみ受け付ける。
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return Clock{hour: h, minute: m}, nil
}

// ValidClock は文字列が "HH:MM" 形式の有効な時刻かを返す。
func ValidClock(s string) bool {
	_, err := ParseClock(s)
	return err == nil
}

// ClockFromMinutes は0時からの経過分数をClockに変換する。
// 1日を超える値や負の値は24時間で折り返す。
func ClockFromMinutes(total int) Clock {
	total %= MinutesPerDay
	if total < 0 {
		total += MinutesPerDay
	}
	return Clock{hour: total / 60, minute: total % 60}
}

// Hour は時を返す。
func (c Clock) Hour() int { return c.hour }

// Minute は分を返す。
func (c Clock) Minute() int { return c.minute }

// Minutes は0時からの経過分数を返す。
func (c Clock) Minutes() int { return c.hour*60 + c.minute }

// Add は分数を加算したClockを返す。
func (c Clock) Add(minutes int) Clock {
	return ClockFromMinutes(c.Minutes() + minutes%MinutesPerDay)
}

// String は "HH:MM" 形式の文字列を返す。
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

// AddMinutes は "HH:MM" 形式の時刻に分数を加算した時刻を返す。
// 小数の分数は最も近い整数に丸めてから加算する（0.5は正の方向に切り上げ）。
// 結果は24時間で折り返し、日数の繰り上がりは捨てる。
func AddMinutes(t string, minutes float64) (string, error) {
	c, err := ParseClock(t)
	if err != nil {
		return "", err
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidMinutes, minutes)
	}

	delta := int(math.Mod(math.Floor(minutes+0.5), MinutesPerDay))
	return c.Add(delta).String(), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
