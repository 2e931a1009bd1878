package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram_booking_bot/internal/bot/flow"
	"telegram_booking_bot/pkg/errors"
)

const keyPrefix = "booking:session:"

// RedisStore хранит сессии в Redis; таймаут реализован через TTL ключа
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ flow.SessionStore = (*RedisStore)(nil)

// NewRedisClient создает клиент Redis и проверяет подключение
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return client, nil
}

// NewRedisStore создает хранилище сессий поверх клиента Redis
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Load возвращает состояние пользователя или nil, если ключ истек
func (s *RedisStore) Load(ctx context.Context, userID int64) (flow.State, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrSession.WithError(fmt.Errorf("failed to get session: %w", err))
	}

	return flow.UnmarshalState(data)
}

// Save сохраняет состояние и обновляет TTL
func (s *RedisStore) Save(ctx context.Context, userID int64, state flow.State) error {
	data, err := flow.MarshalState(state)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return errors.ErrSession.WithError(fmt.Errorf("failed to set session: %w", err))
	}
	return nil
}

// Clear удаляет сессию пользователя
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return errors.ErrSession.WithError(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

// Ping проверяет подключение к Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
