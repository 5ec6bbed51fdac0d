package notify

import (
	"fmt"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
)

// RedisConnOpt converts a redis:// URL into asynq connection options.
func RedisConnOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("notify: parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}
