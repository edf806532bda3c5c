// Package channel はチャンネル管理のドメインロジックを提供する。
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stationman/internal/cache"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/security"
)

// maxNameLength はチャンネル名の最大文字数。
const maxNameLength = 255

// Service はチャンネル管理のサービス層。
type Service struct {
	channelRepo repository.ChannelRepository
	programRepo repository.ProgramRepository
	sanitizer   security.TextSanitizerService
	locker      cache.Locker
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	channelRepo repository.ChannelRepository,
	programRepo repository.ProgramRepository,
	sanitizer security.TextSanitizerService,
	locker cache.Locker,
	logger *slog.Logger,
) *Service {
	return &Service{
		channelRepo: channelRepo,
		programRepo: programRepo,
		sanitizer:   sanitizer,
		locker:      locker,
		logger:      logger,
	}
}

// List は全チャンネルを作成順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Channel, error) {
	channels, err := s.channelRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	if channels == nil {
		channels = []*model.Channel{}
	}
	return channels, nil
}

// Get は指定IDのチャンネルを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Channel, error) {
	ch, err := s.channelRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if ch == nil {
		return nil, model.NewChannelNotFoundError(id)
	}
	return ch, nil
}

// Create はチャンネルを作成する。
func (s *Service) Create(ctx context.Context, name string) (*model.Channel, error) {
	name, apiErr := s.normalizeName(name)
	if apiErr != nil {
		return nil, apiErr
	}

	now := time.Now()
	ch := &model.Channel{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("チャンネルの作成に失敗しました: %w", err)
	}

	s.logger.Info("チャンネルを作成しました",
		slog.String("channel_id", ch.ID),
		slog.String("name", ch.Name),
	)
	return ch, nil
}

// Update はチャンネル名を変更する。
func (s *Service) Update(ctx context.Context, id, name string) (*model.Channel, error) {
	name, apiErr := s.normalizeName(name)
	if apiErr != nil {
		return nil, apiErr
	}

	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ch.Name = name
	ch.UpdatedAt = time.Now()
	if err := s.channelRepo.Update(ctx, ch); err != nil {
		return nil, fmt.Errorf("チャンネルの更新に失敗しました: %w", err)
	}
	return ch, nil
}

// Delete はチャンネルを削除する。
// 最後の1チャンネルは削除できない。所属していた番組は残ったチャンネルのうち
// 先頭（作成順）のチャンネルへ開始時刻を変えずに付け替える。
// 付け替え先のチャンネルIDと付け替えた番組数を返す。
func (s *Service) Delete(ctx context.Context, id string) (string, int, error) {
	unlock, err := s.locker.Lock(ctx, cache.ScheduleKey)
	if err != nil {
		return "", 0, model.NewScheduleBusyError()
	}
	defer unlock()

	channels, err := s.channelRepo.List(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	if len(channels) <= 1 {
		return "", 0, model.NewCannotDeleteLastChannelError()
	}

	var target string
	found := false
	for _, ch := range channels {
		if ch.ID == id {
			found = true
			continue
		}
		if target == "" {
			target = ch.ID
		}
	}
	if !found {
		return "", 0, model.NewChannelNotFoundError(id)
	}

	moved, err := s.programRepo.ReassignChannel(ctx, id, target)
	if err != nil {
		return "", 0, fmt.Errorf("番組の付け替えに失敗しました: %w", err)
	}
	if err := s.channelRepo.Delete(ctx, id); err != nil {
		return "", 0, fmt.Errorf("チャンネルの削除に失敗しました: %w", err)
	}

	s.logger.Info("チャンネルを削除しました",
		slog.String("channel_id", id),
		slog.String("reassigned_to", target),
		slog.Int("programs_moved", moved),
	)
	return target, moved, nil
}

// ResolveDefault はchannelIDが空の場合に既定チャンネル（作成順で先頭）のIDを返す。
// 指定されたチャンネルが存在しない場合はCHANNEL_NOT_FOUNDを返す。
func (s *Service) ResolveDefault(ctx context.Context, channelID string) (string, error) {
	if channelID != "" {
		if _, err := s.Get(ctx, channelID); err != nil {
			return "", err
		}
		return channelID, nil
	}

	channels, err := s.channelRepo.List(ctx)
	if err != nil {
		return "", fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	if len(channels) == 0 {
		return "", model.NewChannelNotFoundError("")
	}
	return channels[0].ID, nil
}

func (s *Service) normalizeName(name string) (string, *model.APIError) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return "", model.NewChannelNameRequiredError()
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name, nil
}
