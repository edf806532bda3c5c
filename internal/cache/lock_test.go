package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockers_ImplementInterface(t *testing.T) {
	var _ Locker = (*LocalLocker)(nil)
	var _ Locker = (*RedisLocker)(nil)
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "schedule:CH1")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("同時にロックを保持したゴルーチン数 = %d, want 1", maxInside)
	}
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("別キーのロックがブロックされた: %v", err)
	}
	unlockB()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, ErrLocked) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrLocked wrapping DeadlineExceeded", err)
	}

	// 二重のunlockは安全
	unlock()
	unlock()

	unlock2, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("解放後のLock() error = %v", err)
	}
	unlock2()
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New("://bad"); err == nil {
		t.Error("不正なURLでエラーが返されるべき")
	}
}

// testRedis はTEST_REDIS_URLが設定されている場合のみRedisクライアントを返す。
func testRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URLが未設定のためスキップ")
	}
	r, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Skipf("Redisに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisLocker_Exclusive(t *testing.T) {
	r := testRedis(t)
	l := NewRedisLocker(r, 5*time.Second)
	key := "test:" + randomToken()

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, ErrLocked) {
		t.Errorf("保持中のロック: err = %v, want ErrLocked", err)
	}

	unlock()
	unlock2, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("解放後のLock() error = %v", err)
	}
	unlock2()
}

func TestGetSet_RoundTrip(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "test:" + randomToken()
	t.Cleanup(func() { Del(ctx, r, key) })

	if _, err := Get[int](ctx, r, key); !IsMiss(err) {
		t.Fatalf("未設定キー: err = %v, want miss", err)
	}
	if err := Set(ctx, r, key, 754, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := Get[int](ctx, r, key)
	if err != nil || got != 754 {
		t.Errorf("Get() = %d, %v; want 754", got, err)
	}
}
