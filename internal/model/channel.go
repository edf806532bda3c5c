// Package model はドメインモデルを定義する。
package model

import "time"

// Channel は番組表の1レーン（放送チャンネル）を表す。
// 0件以上の番組を所有する。
type Channel struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
