package zoomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration // 0 keeps records forever
	KeyPrefix string
}

// RedisStore keeps the zoom index and the full measurement per serial
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore. The connection is established lazily.
func NewRedisStore(opts RedisOptions, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisStore{
		client: client,
		ttl:    opts.TTL,
		prefix: opts.KeyPrefix,
		logger: logger,
	}
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) zoomKey(serial string) string {
	return s.prefix + "zoom:" + serial
}

func (s *RedisStore) measurementKey(serial string) string {
	return s.prefix + "measurement:" + serial
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, m *types.Measurement) error {
	if err := validate(m); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal measurement: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.zoomKey(m.SerialNumber), m.ZoomIndex, s.ttl)
	pipe.Set(ctx, s.measurementKey(m.SerialNumber), data, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store zoom in redis: %w", err)
	}

	s.logger.Debug("zoom stored in redis",
		zap.String("serial", m.SerialNumber),
		zap.Int("zoom_index", m.ZoomIndex))
	return nil
}

// Lookup implements Lookuper
func (s *RedisStore) Lookup(ctx context.Context, serial string) (int, error) {
	zoom, err := s.client.Get(ctx, s.zoomKey(serial)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, serial)
		}
		return 0, err
	}
	return zoom, nil
}

// Measurement returns the last measurement stored for serial
func (s *RedisStore) Measurement(ctx context.Context, serial string) (*types.Measurement, error) {
	data, err := s.client.Get(ctx, s.measurementKey(serial)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, serial)
		}
		return nil, err
	}

	var m types.Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Error("failed to unmarshal measurement",
			zap.String("serial", serial), zap.Error(err))
		return nil, err
	}
	return &m, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
