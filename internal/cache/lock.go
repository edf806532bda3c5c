package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLocked はロックが他の保持者に取得されていることを表す。
var ErrLocked = errors.New("lock is already held")

// Locker はキー単位の排他ロックを提供する。
// Lockは取得できるまで待機し、ctxがキャンセルされるとエラーを返す。
// 返されたunlockは必ず呼び出すこと。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker はプロセス内でのみ有効なLocker。
// 単一プロセス構成（JSONストア）で使用する。
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker はLocalLockerを生成する。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock はキーのロックを取得する。
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
	}
}

// TryLock はRedisのSET NX EXで分散ロックの取得を1回だけ試みる。
// 取得済みの場合はErrLockedを返す。
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (unlock func(), err error) {
	token := randomToken()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	// トークンが一致する場合のみ削除する
	unlockScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	return func() {
		_ = r.client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
	}, nil
}

// RedisLocker は複数プロセス間で有効なLocker。
// 取得できるまでretryInterval間隔でTryLockを繰り返す。
type RedisLocker struct {
	redis         *Redis
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisLocker はRedisLockerを生成する。
// ttlはロック保持者が異常終了した場合にロックが自動解放されるまでの時間。
func NewRedisLocker(r *Redis, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		redis:         r,
		prefix:        "stationman:lock:",
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
	}
}

// Lock はキーの分散ロックを取得する。
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		unlock, err := TryLock(ctx, l.redis, l.prefix+key, l.ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ScheduleKey は番組表全体の読み込み・変更・保存サイクルを直列化するロックキー。
// チャンネル削除時の付け替えやチャンネル間の番組移動があるため、チャンネル単位には分けない。
const ScheduleKey = "schedule"
