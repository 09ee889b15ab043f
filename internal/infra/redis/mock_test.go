//go:build !integration

package redis

import (
	"context"
	"strings"
	"sync"
	"time"
)

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc              func(ctx context.Context, key string) (string, error)
	SetFunc              func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc              func(ctx context.Context, keys ...string) error
	PingFunc             func(ctx context.Context) error
	ScanFunc             func(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	SetNXFunc            func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	CompareAndDeleteFunc func(ctx context.Context, key, value string) (bool, error)
	CloseFunc            func() error
}

var _ RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return m.ScanFunc(ctx, cursor, match, count)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return m.CompareAndDeleteFunc(ctx, key, value)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// memRedis is a tiny map-backed store used to drive the mock.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memRedis) client() *mockRedisClient {
	return &mockRedisClient{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			v, ok := s.data[key]
			if !ok {
				return "", Nil
			}
			return v, nil
		},
		SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			switch v := value.(type) {
			case []byte:
				s.data[key] = string(v)
			case string:
				s.data[key] = v
			}
			s.ttls[key] = expiration
			return nil
		},
		DelFunc: func(ctx context.Context, keys ...string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, k := range keys {
				delete(s.data, k)
				delete(s.ttls, k)
			}
			return nil
		},
		ScanFunc: func(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			prefix := strings.TrimSuffix(match, "*")
			var keys []string
			for k := range s.data {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			return keys, 0, nil
		},
		SetNXFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.data[key]; ok {
				return false, nil
			}
			switch v := value.(type) {
			case []byte:
				s.data[key] = string(v)
			case string:
				s.data[key] = v
			}
			s.ttls[key] = expiration
			return true, nil
		},
		CompareAndDeleteFunc: func(ctx context.Context, key, value string) (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.data[key] != value {
				return false, nil
			}
			delete(s.data, key)
			return true, nil
		},
	}
}
