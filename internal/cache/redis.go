// Package cache はRedisクライアントのラッパーと、スケジュール更新を直列化するロックを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis はgo-redisクライアントにJSONシリアライズのヘルパーを加えたラッパー。
type Redis struct {
	client *redis.Client
}

// New はRedisのURL（例: "redis://host:6379/0"）を解析してクライアントを生成する。
// 接続確認にはPingを使用すること。
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Ping はRedisへの疎通を確認する。
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close はクライアントを閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}

// IsMiss はキーが存在しないことを表すエラーかを判定する。
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Get はキーの値を取得してJSONとしてデコードする。
// キーが存在しない場合はredis.Nilを返す（IsMissで判定できる）。
func Get[T any](ctx context.Context, r *Redis, key string) (T, error) {
	var zero T
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return v, nil
}

// Set はvをJSONにエンコードしてTTL付きで保存する。
func Set(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Del は指定したキーを削除する。
func Del(ctx context.Context, r *Redis, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
