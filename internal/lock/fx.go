package lock

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const keyPrefix = "incomeengine:lock:"

var Module = fx.Module("lock",
	fx.Provide(func(client *redis.Client) *RedisLocker {
		return NewRedisLocker(client, keyPrefix)
	}),
)
