// Package repository はデータ永続化のインターフェースと実装を提供する。
//
// 実装はPostgreSQL（PostgresChannelRepo / PostgresProgramRepo）と
// 単一JSONドキュメント（JSONStore）の2種類がある。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/stationman/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID は同じIDのレコードが既に存在することを表す。
	ErrDuplicateID = errors.New("duplicate id")
)

// ChannelRepository はチャンネルデータの永続化インターフェース。
type ChannelRepository interface {
	// List は全チャンネルをコレクション順（作成順）で返す。
	List(ctx context.Context) ([]*model.Channel, error)

	// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Channel, error)

	// Count はチャンネル数を返す。
	Count(ctx context.Context) (int, error)

	// Create はチャンネルを作成する。IDが重複する場合はErrDuplicateIDを返す。
	Create(ctx context.Context, channel *model.Channel) error

	// Update はチャンネル名を更新する。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, channel *model.Channel) error

	// Delete は指定IDのチャンネルを削除する。存在しない場合はErrNotFoundを返す。
	// 所属する番組の付け替えは呼び出し側が事前に行う。
	Delete(ctx context.Context, id string) error
}

// ProgramRepository は番組データの永続化インターフェース。
type ProgramRepository interface {
	// List は全番組を開始時刻の文字列順で返す。
	List(ctx context.Context) ([]*model.Program, error)

	// ListByChannel は指定チャンネルの番組をコレクション順（作成順）で返す。
	// 開始時刻での並べ替えはスケジューリングのコアが行う。
	ListByChannel(ctx context.Context, channelID string) ([]*model.Program, error)

	// FindByID は指定IDの番組を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Program, error)

	// Create は番組を作成する。IDが重複する場合はErrDuplicateIDを返す。
	Create(ctx context.Context, program *model.Program) error

	// Update は番組の全フィールドを上書き更新する。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, program *model.Program) error

	// Delete は指定IDの番組を削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// UpdateStartTimes は複数番組の開始時刻をまとめて更新する。
	// 一部のみが反映されることはない。
	UpdateStartTimes(ctx context.Context, programs []*model.Program) error

	// UpdateStatus は番組の放送状態を更新する。存在しない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id string, status model.ProgramStatus) error

	// ReassignChannel はfromIDに所属する全番組をtoIDへ付け替える。
	// 開始時刻は変更しない。付け替えた件数を返す。
	ReassignChannel(ctx context.Context, fromID, toID string) (int, error)
}

// Pinger はストアの疎通確認用インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
