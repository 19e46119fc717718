package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"treacherest/internal/model"
)

// activeRoomsKey is the set of currently-active room codes (spec §6.3).
const activeRoomsKey = "active:rooms"

func roomKey(code string) string {
	return "room:" + code
}

// RedisStore is the production Store backend. The shape is the teacher's
// read-modify-write MemoryStore (lock, fetch, mutate, write) with the
// in-process map replaced by Redis GET/SET/SETNX/SADD, the way the
// dojun memory-feast-online reference server swaps its map-backed
// store.Store for a Redis-backed one behind the same interface.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRedisStore dials a Redis server at addr (password and db may be empty
// and zero respectively) and returns a Store backed by it.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) lockFor(code string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[code]
	if !ok {
		l = &sync.Mutex{}
		s.locks[code] = l
	}
	return l
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, code string, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("cache: marshal room %s: %w", code, err)
	}

	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.client.SetNX(ctx, roomKey(code), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("cache: create room %s: %w", code, err)
	}
	if !ok {
		return ErrCodeInUse
	}
	if err := s.client.SAdd(ctx, activeRoomsKey, code).Err(); err != nil {
		return fmt.Errorf("cache: register active room %s: %w", code, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, code string) (*model.Room, error) {
	data, err := s.client.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get room %s: %w", code, err)
	}
	room := &model.Room{}
	if err := json.Unmarshal(data, room); err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", ErrConflict, code, err)
	}
	return room, nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, code string, mutate Mutator) (*model.Room, error) {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := mutate(room); err != nil {
		return nil, err
	}
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", ErrConflict, code, err)
	}
	if err := s.client.Set(ctx, roomKey(code), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("cache: update room %s: %w", code, err)
	}
	return room, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, code string) error {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, roomKey(code))
	pipe.SRem(ctx, activeRoomsKey, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: delete room %s: %w", code, err)
	}

	s.mu.Lock()
	delete(s.locks, code)
	s.mu.Unlock()
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, roomKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists room %s: %w", code, err)
	}
	return n > 0, nil
}

// ActiveCodes implements Store.
func (s *RedisStore) ActiveCodes(ctx context.Context) ([]string, error) {
	codes, err := s.client.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: active codes: %w", err)
	}
	return codes, nil
}
