package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/stationman/internal/model"
)

// legacyChannelID は旧形式（番組配列のみ）のファイルを移行する際の既定チャンネル。
const legacyChannelID = "CH1"

// JSONStore は単一のJSONファイルにチャンネルと番組を保存するストア。
// 変更のたびにファイル全体を一時ファイル経由で書き換える。
type JSONStore struct {
	path string
	mu   sync.RWMutex
	doc  *document
}

// document はJSONファイルのトップレベル構造。
type document struct {
	Channels []*channelRecord `json:"channels"`
	Programs []*programRecord `json:"programs"`
}

type channelRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

type programRecord struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	StartTime string    `json:"startTime"`
	Duration  int       `json:"duration"`
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// OpenJSONStore は指定パスのJSONストアを開く。
// ファイルが存在しない場合は空のストアを作成して保存する。
// トップレベルが配列の旧形式ファイルは番組一覧として読み込み、
// チャンネル未設定の番組をCH1に所属させて新形式で保存し直す。
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.doc = &document{Channels: []*channelRecord{}, Programs: []*programRecord{}}
			return s.save()
		}
		return fmt.Errorf("データファイルの読み込みに失敗しました: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var programs []*programRecord
		if err := json.Unmarshal(trimmed, &programs); err != nil {
			return fmt.Errorf("旧形式データファイルの解析に失敗しました: %w", err)
		}
		for _, p := range programs {
			if p.ChannelID == "" {
				p.ChannelID = legacyChannelID
			}
		}
		s.doc = &document{Channels: []*channelRecord{}, Programs: programs}
		return s.save()
	}

	doc := &document{}
	if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, doc); err != nil {
			return fmt.Errorf("データファイルの解析に失敗しました: %w", err)
		}
	}
	if doc.Channels == nil {
		doc.Channels = []*channelRecord{}
	}
	if doc.Programs == nil {
		doc.Programs = []*programRecord{}
	}
	s.doc = doc
	return nil
}

// save はドキュメントを一時ファイルに書き出してからリネームする。
// 呼び出し側で書き込みロックを保持していること。
func (s *JSONStore) save() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".stationman-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("データファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("データファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("データファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("データファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

// mutate は書き込みロック下でfnを実行し、成功した場合のみ保存する。
// 保存に失敗した場合はメモリ上のドキュメントを元に戻す。
func (s *JSONStore) mutate(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.doc.clone()
	if err := fn(s.doc); err != nil {
		s.doc = backup
		return err
	}
	if err := s.save(); err != nil {
		s.doc = backup
		return err
	}
	return nil
}

// PingContext はデータファイルへのアクセス可否を確認する。
func (s *JSONStore) PingContext(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("データファイルにアクセスできません: %w", err)
	}
	return ctx.Err()
}

// Channels はチャンネルリポジトリとしてのビューを返す。
func (s *JSONStore) Channels() *JSONChannelRepo {
	return &JSONChannelRepo{store: s}
}

// Programs は番組リポジトリとしてのビューを返す。
func (s *JSONStore) Programs() *JSONProgramRepo {
	return &JSONProgramRepo{store: s}
}

func (d *document) clone() *document {
	c := &document{
		Channels: make([]*channelRecord, len(d.Channels)),
		Programs: make([]*programRecord, len(d.Programs)),
	}
	for i, ch := range d.Channels {
		cp := *ch
		c.Channels[i] = &cp
	}
	for i, p := range d.Programs {
		cp := *p
		c.Programs[i] = &cp
	}
	return c
}

func (d *document) channelIndex(id string) int {
	return slices.IndexFunc(d.Channels, func(c *channelRecord) bool { return c.ID == id })
}

func (d *document) programIndex(id string) int {
	return slices.IndexFunc(d.Programs, func(p *programRecord) bool { return p.ID == id })
}

// JSONChannelRepo はJSONStoreのチャンネルリポジトリ実装。
type JSONChannelRepo struct {
	store *JSONStore
}

func (r *JSONChannelRepo) List(ctx context.Context) ([]*model.Channel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	channels := make([]*model.Channel, 0, len(r.store.doc.Channels))
	for _, rec := range r.store.doc.Channels {
		channels = append(channels, rec.toModel())
	}
	return channels, nil
}

func (r *JSONChannelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.doc.channelIndex(id)
	if i < 0 {
		return nil, nil
	}
	return r.store.doc.Channels[i].toModel(), nil
}

func (r *JSONChannelRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.doc.Channels), nil
}

func (r *JSONChannelRepo) Create(ctx context.Context, channel *model.Channel) error {
	return r.store.mutate(func(doc *document) error {
		if doc.channelIndex(channel.ID) >= 0 {
			return fmt.Errorf("チャンネルの作成に失敗しました: %w", ErrDuplicateID)
		}
		doc.Channels = append(doc.Channels, channelFromModel(channel))
		return nil
	})
}

func (r *JSONChannelRepo) Update(ctx context.Context, channel *model.Channel) error {
	return r.store.mutate(func(doc *document) error {
		i := doc.channelIndex(channel.ID)
		if i < 0 {
			return fmt.Errorf("チャンネルの更新に失敗しました: %w", ErrNotFound)
		}
		doc.Channels[i].Name = channel.Name
		doc.Channels[i].UpdatedAt = channel.UpdatedAt
		return nil
	})
}

func (r *JSONChannelRepo) Delete(ctx context.Context, id string) error {
	return r.store.mutate(func(doc *document) error {
		i := doc.channelIndex(id)
		if i < 0 {
			return fmt.Errorf("チャンネルの削除に失敗しました: %w", ErrNotFound)
		}
		doc.Channels = slices.Delete(doc.Channels, i, i+1)
		return nil
	})
}

// JSONProgramRepo はJSONStoreの番組リポジトリ実装。
type JSONProgramRepo struct {
	store *JSONStore
}

func (r *JSONProgramRepo) List(ctx context.Context) ([]*model.Program, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	programs := make([]*model.Program, 0, len(r.store.doc.Programs))
	for _, rec := range r.store.doc.Programs {
		programs = append(programs, rec.toModel())
	}
	slices.SortStableFunc(programs, func(a, b *model.Program) int {
		return strings.Compare(a.StartTime, b.StartTime)
	})
	return programs, nil
}

func (r *JSONProgramRepo) ListByChannel(ctx context.Context, channelID string) ([]*model.Program, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var programs []*model.Program
	for _, rec := range r.store.doc.Programs {
		if rec.ChannelID == channelID {
			programs = append(programs, rec.toModel())
		}
	}
	return programs, nil
}

func (r *JSONProgramRepo) FindByID(ctx context.Context, id string) (*model.Program, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.doc.programIndex(id)
	if i < 0 {
		return nil, nil
	}
	return r.store.doc.Programs[i].toModel(), nil
}

func (r *JSONProgramRepo) Create(ctx context.Context, program *model.Program) error {
	return r.store.mutate(func(doc *document) error {
		if doc.programIndex(program.ID) >= 0 {
			return fmt.Errorf("番組の作成に失敗しました: %w", ErrDuplicateID)
		}
		doc.Programs = append(doc.Programs, programFromModel(program))
		return nil
	})
}

func (r *JSONProgramRepo) Update(ctx context.Context, program *model.Program) error {
	return r.store.mutate(func(doc *document) error {
		i := doc.programIndex(program.ID)
		if i < 0 {
			return fmt.Errorf("番組の更新に失敗しました: %w", ErrNotFound)
		}
		rec := programFromModel(program)
		rec.CreatedAt = doc.Programs[i].CreatedAt
		doc.Programs[i] = rec
		return nil
	})
}

func (r *JSONProgramRepo) Delete(ctx context.Context, id string) error {
	return r.store.mutate(func(doc *document) error {
		i := doc.programIndex(id)
		if i < 0 {
			return fmt.Errorf("番組の削除に失敗しました: %w", ErrNotFound)
		}
		doc.Programs = slices.Delete(doc.Programs, i, i+1)
		return nil
	})
}

func (r *JSONProgramRepo) UpdateStartTimes(ctx context.Context, programs []*model.Program) error {
	if len(programs) == 0 {
		return nil
	}
	now := time.Now()
	err := r.store.mutate(func(doc *document) error {
		for _, p := range programs {
			i := doc.programIndex(p.ID)
			if i < 0 {
				return fmt.Errorf("番組 %s の開始時刻の更新に失敗しました: %w", p.ID, ErrNotFound)
			}
			doc.Programs[i].StartTime = p.StartTime
			doc.Programs[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range programs {
		p.UpdatedAt = now
	}
	return nil
}

func (r *JSONProgramRepo) UpdateStatus(ctx context.Context, id string, status model.ProgramStatus) error {
	return r.store.mutate(func(doc *document) error {
		i := doc.programIndex(id)
		if i < 0 {
			return fmt.Errorf("放送状態の更新に失敗しました: %w", ErrNotFound)
		}
		doc.Programs[i].Status = string(status)
		doc.Programs[i].UpdatedAt = time.Now()
		return nil
	})
}

func (r *JSONProgramRepo) ReassignChannel(ctx context.Context, fromID, toID string) (int, error) {
	var n int
	now := time.Now()
	err := r.store.mutate(func(doc *document) error {
		for _, p := range doc.Programs {
			if p.ChannelID == fromID {
				p.ChannelID = toID
				p.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *channelRecord) toModel() *model.Channel {
	return &model.Channel{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func channelFromModel(ch *model.Channel) *channelRecord {
	return &channelRecord{
		ID:        ch.ID,
		Name:      ch.Name,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

func (p *programRecord) toModel() *model.Program {
	return &model.Program{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		Title:     p.Title,
		Type:      model.ProgramType(p.Type),
		StartTime: p.StartTime,
		Duration:  p.Duration,
		Status:    model.ProgramStatus(p.Status),
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func programFromModel(p *model.Program) *programRecord {
	return &programRecord{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		Title:     p.Title,
		Type:      string(p.Type),
		StartTime: p.StartTime,
		Duration:  p.Duration,
		Status:    string(p.Status),
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
