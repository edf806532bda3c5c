// Package program は番組の登録・編集・削除とスケジュールシフトのドメインロジックを提供する。
//
// 番組表の読み込み・変更・保存の一連の処理はcache.Lockerで直列化する。
// スケジュールの再計算自体はschedule.Shiftに委譲する。
package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stationman/internal/cache"
	"github.com/hitoshi/stationman/internal/metrics"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/schedule"
	"github.com/hitoshi/stationman/internal/security"
)

// シフト操作の種別（メトリクスのラベル）。
const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// maxTitleLength は番組タイトルの最大文字数。
const maxTitleLength = 500

// ChannelResolver は番組の所属チャンネルを解決するインターフェース。
type ChannelResolver interface {
	// ResolveDefault はchannelIDが空なら既定チャンネルのIDを、
	// 指定されていれば存在を確認したうえでそのIDを返す。
	ResolveDefault(ctx context.Context, channelID string) (string, error)
}

// Input は番組の作成・編集リクエストの内容。
type Input struct {
	ID        string
	ChannelID string
	Title     string
	Type      model.ProgramType
	StartTime string
	Duration  int
	Status    model.ProgramStatus
	URL       string
}

// OnAirInfo はチャンネルの放送中・次の番組。
type OnAirInfo struct {
	ChannelID string
	Current   *model.Program
	Next      *model.Program
}

// Service は番組管理のサービス層。
type Service struct {
	programRepo repository.ProgramRepository
	channels    ChannelResolver
	sanitizer   security.TextSanitizerService
	locker      cache.Locker
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	programRepo repository.ProgramRepository,
	channels ChannelResolver,
	sanitizer security.TextSanitizerService,
	locker cache.Locker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		programRepo: programRepo,
		channels:    channels,
		sanitizer:   sanitizer,
		locker:      locker,
		metrics:     collector,
		logger:      logger,
		now:         time.Now,
	}
}

// List は全チャンネルの番組を開始時刻の文字列順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Program, error) {
	programs, err := s.programRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}
	if programs == nil {
		programs = []*model.Program{}
	}
	return programs, nil
}

// Get は指定IDの番組を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Program, error) {
	p, err := s.programRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("番組の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProgramNotFoundError(id)
	}
	return p, nil
}

// Create は番組を登録する。
// shiftがtrueの場合、登録した番組を起点に同じチャンネルの後続番組を詰め直す。
func (s *Service) Create(ctx context.Context, in Input, shift bool) (*model.Program, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = model.ProgramStatusScheduled
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	channelID, err := s.channels.ResolveDefault(ctx, in.ChannelID)
	if err != nil {
		return nil, err
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	} else {
		existing, err := s.programRepo.FindByID(ctx, in.ID)
		if err != nil {
			return nil, fmt.Errorf("番組の取得に失敗しました: %w", err)
		}
		if existing != nil {
			return nil, model.NewProgramAlreadyExistsError(in.ID)
		}
	}

	now := s.now()
	p := &model.Program{
		ID:        in.ID,
		ChannelID: channelID,
		Title:     in.Title,
		Type:      in.Type,
		StartTime: in.StartTime,
		Duration:  in.Duration,
		Status:    in.Status,
		URL:       in.URL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.programRepo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			return nil, model.NewProgramAlreadyExistsError(p.ID)
		}
		return nil, fmt.Errorf("番組の作成に失敗しました: %w", err)
	}

	if shift {
		if _, err := s.shiftAndPersist(ctx, OperationInsert, p.ChannelID, p.ID, nil); err != nil {
			return nil, err
		}
	}

	s.logger.Info("番組を登録しました",
		slog.String("program_id", p.ID),
		slog.String("channel_id", p.ChannelID),
		slog.String("start_time", p.StartTime),
		slog.Bool("shift_schedule", shift),
	)
	return p, nil
}

// Update は番組の内容を置き換える。放送状態（Status）は変更しない。
// shiftがtrueの場合、編集後のチャンネルで編集した番組を起点に後続番組を詰め直す。
// 別チャンネルへ移動した場合でも移動元のチャンネルは詰め直さない。
func (s *Service) Update(ctx context.Context, id string, in Input, shift bool) (*model.Program, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	channelID := p.ChannelID
	if in.ChannelID != "" {
		if channelID, err = s.channels.ResolveDefault(ctx, in.ChannelID); err != nil {
			return nil, err
		}
	}

	p.ChannelID = channelID
	p.Title = in.Title
	p.Type = in.Type
	p.StartTime = in.StartTime
	p.Duration = in.Duration
	p.URL = in.URL
	p.UpdatedAt = s.now()

	if err := s.programRepo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProgramNotFoundError(id)
		}
		return nil, fmt.Errorf("番組の更新に失敗しました: %w", err)
	}

	if shift {
		if _, err := s.shiftAndPersist(ctx, OperationUpdate, p.ChannelID, p.ID, nil); err != nil {
			return nil, err
		}
	}

	s.logger.Info("番組を更新しました",
		slog.String("program_id", p.ID),
		slog.String("channel_id", p.ChannelID),
		slog.Bool("shift_schedule", shift),
	)
	return p, nil
}

// Delete は番組を削除する。
// shiftがtrueの場合、削除する番組の長さを0とみなしてシフトし、後続番組を前に詰める。
func (s *Service) Delete(ctx context.Context, id string, shift bool) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var moved []*model.Program
	if shift {
		res, err := s.computeShift(ctx, p.ChannelID, p.ID, func(anchor *model.Program) {
			anchor.Duration = 0
		})
		if err != nil {
			return err
		}
		moved = res.Moved
	}

	if err := s.programRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProgramNotFoundError(id)
		}
		return fmt.Errorf("番組の削除に失敗しました: %w", err)
	}

	if shift {
		if err := s.programRepo.UpdateStartTimes(ctx, moved); err != nil {
			return fmt.Errorf("後続番組の開始時刻の更新に失敗しました: %w", err)
		}
		s.metrics.RecordShift(OperationDelete, len(moved))
	}

	s.logger.Info("番組を削除しました",
		slog.String("program_id", id),
		slog.String("channel_id", p.ChannelID),
		slog.Bool("shift_schedule", shift),
		slog.Int("programs_moved", len(moved)),
	)
	return nil
}

// SetStatus は番組の放送状態を更新する。
func (s *Service) SetStatus(ctx context.Context, id string, status model.ProgramStatus) (*model.Program, error) {
	if !status.Valid() {
		return nil, model.NewInvalidProgramStatusError(string(status))
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.programRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProgramNotFoundError(id)
		}
		return nil, fmt.Errorf("放送状態の更新に失敗しました: %w", err)
	}
	return s.Get(ctx, id)
}

// OnAir はチャンネルでnowの時点に放送中の番組と次の番組を返す。
func (s *Service) OnAir(ctx context.Context, channelID string, now time.Time) (*OnAirInfo, error) {
	channelID, err := s.channels.ResolveDefault(ctx, channelID)
	if err != nil {
		return nil, err
	}

	programs, err := s.programRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}

	return &OnAirInfo{
		ChannelID: channelID,
		Current:   schedule.NowPlaying(programs, channelID, now),
		Next:      schedule.UpNext(programs, channelID, now),
	}, nil
}

// shiftAndPersist はチャンネルの番組を読み込んでシフトし、開始時刻が変わった番組を保存する。
func (s *Service) shiftAndPersist(ctx context.Context, operation, channelID, anchorID string, adjust func(*model.Program)) ([]*model.Program, error) {
	res, err := s.computeShift(ctx, channelID, anchorID, adjust)
	if err != nil {
		return nil, err
	}
	if err := s.programRepo.UpdateStartTimes(ctx, res.Moved); err != nil {
		return nil, fmt.Errorf("後続番組の開始時刻の更新に失敗しました: %w", err)
	}
	s.metrics.RecordShift(operation, len(res.Moved))
	return res.Moved, nil
}

// computeShift はチャンネルの番組を読み込み、メモリ上でシフトを計算する。
// adjustが指定された場合はシフト前に起点番組へ適用する（削除時の長さ0など）。
func (s *Service) computeShift(ctx context.Context, channelID, anchorID string, adjust func(*model.Program)) (schedule.Result, error) {
	programs, err := s.programRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return schedule.Result{}, fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}
	if adjust != nil {
		for _, p := range programs {
			if p.ID == anchorID {
				adjust(p)
			}
		}
	}

	res, err := schedule.Shift(programs, channelID, anchorID)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidTimeFormat) {
			return res, model.NewInvalidTimeFormatError(err.Error())
		}
		return res, fmt.Errorf("スケジュールのシフトに失敗しました: %w", err)
	}
	return res, nil
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	unlock, err := s.locker.Lock(ctx, cache.ScheduleKey)
	if err != nil {
		s.logger.Warn("番組表のロックを取得できませんでした", slog.String("error", err.Error()))
		return nil, model.NewScheduleBusyError()
	}
	return unlock, nil
}

// normalize は入力値を検証し、タイトルのサニタイズを行う。
func (s *Service) normalize(in *Input) error {
	in.Title = s.sanitizer.Sanitize(in.Title)
	if in.Title == "" {
		return model.NewTitleRequiredError()
	}
	if r := []rune(in.Title); len(r) > maxTitleLength {
		in.Title = string(r[:maxTitleLength])
	}
	if !schedule.ValidClock(in.StartTime) {
		return model.NewInvalidTimeFormatError(in.StartTime)
	}
	if in.Duration < 0 {
		return model.NewInvalidDurationError(in.Duration)
	}
	if !in.Type.Valid() {
		return model.NewInvalidProgramTypeError(string(in.Type))
	}
	if in.Status != "" && !in.Status.Valid() {
		return model.NewInvalidProgramStatusError(string(in.Status))
	}
	if in.URL != "" {
		u, err := url.Parse(in.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return model.NewInvalidURLError("http または https のURLを指定してください")
		}
	}
	return nil
}
