package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chatrelay:session:"

// RedisStore хранит сессию одним JSON-значением на ключ.
// ttl > 0 продлевается при каждом Update.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// NewRedisClient разбирает redis:// URL и создаёт клиента.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("op=redis.parse_url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, fmt.Errorf("op=session.get: %w", ErrNotFound)
		}
		return Session{}, fmt.Errorf("op=session.get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("op=session.get decode: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Create(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("op=session.create: empty id")
	}
	now := s.now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	if sess.History == nil {
		sess.History = History{}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, redisKey(sess.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	if !ok {
		return fmt.Errorf("op=session.create %s: already exists", sess.ID)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, history History) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.History = history
	if sess.History == nil {
		sess.History = History{}
	}
	sess.UpdatedAt = s.now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	ok, err := s.rdb.SetXX(ctx, redisKey(id), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	if !ok {
		// ключ истёк между Get и SetXX
		return fmt.Errorf("op=session.update: %w", ErrNotFound)
	}
	return nil
}
