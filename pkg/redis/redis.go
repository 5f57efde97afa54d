package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	resultKeyPrefix = "detect:result:"
	dialTimeout     = 2 * time.Second
	pingTimeout     = 5 * time.Second
)

// ErrCacheMiss is returned by GetResult when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// IRedis stores encoded detection responses by request fingerprint.
type IRedis interface {
	GetResult(ctx context.Context, fingerprint string) ([]byte, error)
	SetResult(ctx context.Context, fingerprint string, value []byte, expiration time.Duration) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

type Options struct {
	Address  string
	Password string
	DB       int
}

// New never fails; an unreachable server is logged and every later call
// returns the connection error.
func New(opts Options) IRedis {
	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", opts.Address))

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Address,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func resultKey(fingerprint string) string {
	return resultKeyPrefix + fingerprint
}

func (r *redisClient) GetResult(ctx context.Context, fingerprint string) ([]byte, error) {
	key := resultKey(fingerprint)

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Result not cached for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting result for key %s: %v", key, err))
		return nil, err
	}

	return val, nil
}

func (r *redisClient) SetResult(ctx context.Context, fingerprint string, value []byte, expiration time.Duration) error {
	key := resultKey(fingerprint)

	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error setting result for key %s: %v", key, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Cached result for key %s with expiration %v", key, expiration))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
