package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 16 || c.MaxIdleConns != 8 {
		t.Fatalf("unexpected pool sizes: %+v", c)
	}
	if c.ConnMaxLifetime != 15*time.Minute || c.PingTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %+v", c)
	}

	tuned := PostgresPoolConfig{MaxOpenConns: 5}.withDefaults()
	if tuned.MaxOpenConns != 5 {
		t.Fatalf("explicit values must survive defaults: %+v", tuned)
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{}.withDefaults()
	if c.DialTimeout != 3*time.Second || c.PoolSize != 20 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}
