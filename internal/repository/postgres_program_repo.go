package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/stationman/internal/model"
)

// programColumns はprogramsテーブルのSELECT対象カラム。
const programColumns = `id, channel_id, title, type, start_time, duration, status, url, created_at, updated_at`

// PostgresProgramRepo はPostgreSQLを使用した番組リポジトリ。
type PostgresProgramRepo struct {
	db *sql.DB
}

// NewPostgresProgramRepo はPostgresProgramRepoを生成する。
func NewPostgresProgramRepo(db *sql.DB) *PostgresProgramRepo {
	return &PostgresProgramRepo{db: db}
}

// List は全番組を開始時刻の文字列順で返す。
// start_timeはCOLLATE "C"でバイト順に比較し、ゼロ埋めHH:MMの文字列比較と一致させる。
func (r *PostgresProgramRepo) List(ctx context.Context) ([]*model.Program, error) {
	return r.query(ctx, "番組一覧の取得に失敗しました",
		`SELECT `+programColumns+` FROM programs ORDER BY start_time COLLATE "C", seq`,
	)
}

// ListByChannel は指定チャンネルの番組を作成順で返す。
func (r *PostgresProgramRepo) ListByChannel(ctx context.Context, channelID string) ([]*model.Program, error) {
	return r.query(ctx, "チャンネル別番組一覧の取得に失敗しました",
		`SELECT `+programColumns+` FROM programs WHERE channel_id = $1 ORDER BY seq`,
		channelID,
	)
}

// FindByID は指定IDの番組を取得する。見つからない場合はnilを返す。
func (r *PostgresProgramRepo) FindByID(ctx context.Context, id string) (*model.Program, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+programColumns+` FROM programs WHERE id = $1`,
		id,
	)
	p, err := scanProgram(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("番組の取得に失敗しました: %w", err)
	}
	return p, nil
}

// Create は番組を作成する。
func (r *PostgresProgramRepo) Create(ctx context.Context, p *model.Program) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO programs (id, channel_id, title, type, start_time, duration, status, url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.ChannelID, p.Title, p.Type, p.StartTime, p.Duration, p.Status,
		nullString(p.URL), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("番組の作成に失敗しました: %w", ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("番組の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は番組の全フィールドを上書き更新する。
func (r *PostgresProgramRepo) Update(ctx context.Context, p *model.Program) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE programs SET
		    channel_id = $2, title = $3, type = $4, start_time = $5,
		    duration = $6, status = $7, url = $8, updated_at = $9
		 WHERE id = $1`,
		p.ID, p.ChannelID, p.Title, p.Type, p.StartTime,
		p.Duration, p.Status, nullString(p.URL), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("番組の更新に失敗しました: %w", err)
	}
	return requireAffected(result, "番組の更新に失敗しました")
}

// Delete は指定IDの番組を削除する。
func (r *PostgresProgramRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("番組の削除に失敗しました: %w", err)
	}
	return requireAffected(result, "番組の削除に失敗しました")
}

// UpdateStartTimes は複数番組の開始時刻を同一トランザクションで更新する。
func (r *PostgresProgramRepo) UpdateStartTimes(ctx context.Context, programs []*model.Program) error {
	if len(programs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE programs SET start_time = $2, updated_at = $3 WHERE id = $1`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range programs {
		if _, err := stmt.ExecContext(ctx, p.ID, p.StartTime, now); err != nil {
			return fmt.Errorf("番組 %s の開始時刻の更新に失敗しました: %w", p.ID, err)
		}
		p.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateStatus は番組の放送状態を更新する。
func (r *PostgresProgramRepo) UpdateStatus(ctx context.Context, id string, status model.ProgramStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE programs SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("放送状態の更新に失敗しました: %w", err)
	}
	return requireAffected(result, "放送状態の更新に失敗しました")
}

// ReassignChannel はfromIDに所属する全番組をtoIDへ付け替える。
func (r *PostgresProgramRepo) ReassignChannel(ctx context.Context, fromID, toID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE programs SET channel_id = $2, updated_at = $3 WHERE channel_id = $1`,
		fromID, toID, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("番組のチャンネル付け替えに失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("付け替え件数の取得に失敗しました: %w", err)
	}
	return int(n), nil
}

func (r *PostgresProgramRepo) query(ctx context.Context, errMsg, query string, args ...any) ([]*model.Program, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	defer rows.Close()

	var programs []*model.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errMsg, err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return programs, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(s rowScanner) (*model.Program, error) {
	p := &model.Program{}
	var url sql.NullString
	err := s.Scan(
		&p.ID, &p.ChannelID, &p.Title, &p.Type, &p.StartTime,
		&p.Duration, &p.Status, &url, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.URL = nullStringValue(url)
	return p, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// isUniqueViolation はPostgreSQLの一意制約違反（23505）かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// requireAffected は更新件数が0の場合にErrNotFoundを返す。
func requireAffected(result sql.Result, errMsg string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", errMsg, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", errMsg, ErrNotFound)
	}
	return nil
}
