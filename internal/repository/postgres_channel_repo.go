package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/stationman/internal/model"
)

// PostgresChannelRepo はPostgreSQLを使用したチャンネルリポジトリ。
type PostgresChannelRepo struct {
	db *sql.DB
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

// List は全チャンネルを作成順で返す。
func (r *PostgresChannelRepo) List(ctx context.Context) ([]*model.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM channels ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		ch := &model.Channel{}
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("チャンネル行の読み取りに失敗しました: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネル一覧の走査に失敗しました: %w", err)
	}
	return channels, nil
}

// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	ch := &model.Channel{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM channels WHERE id = $1`,
		id,
	).Scan(&ch.ID, &ch.Name, &ch.CreatedAt, &ch.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	return ch, nil
}

// Count はチャンネル数を返す。
func (r *PostgresChannelRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("チャンネル数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Create はチャンネルを作成する。
func (r *PostgresChannelRepo) Create(ctx context.Context, channel *model.Channel) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channels (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		channel.ID, channel.Name, channel.CreatedAt, channel.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("チャンネルの作成に失敗しました: %w", ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("チャンネルの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はチャンネル名を更新する。
func (r *PostgresChannelRepo) Update(ctx context.Context, channel *model.Channel) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET name = $2, updated_at = $3 WHERE id = $1`,
		channel.ID, channel.Name, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チャンネルの更新に失敗しました: %w", err)
	}
	return requireAffected(result, "チャンネルの更新に失敗しました")
}

// Delete は指定IDのチャンネルを削除する。
func (r *PostgresChannelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("チャンネルの削除に失敗しました: %w", err)
	}
	return requireAffected(result, "チャンネルの削除に失敗しました")
}
