package cache

import (
	"testing"
	"time"
)

func TestNew_Backends(t *testing.T) {
	var cfg Config

	cfg.Kind = "memory"
	cfg.Memory.DefaultTTL = time.Hour
	if c := New(cfg); c == nil {
		t.Fatalf("memory kind should build a cache")
	}

	cfg.Kind = "redis"
	cfg.Redis.Addr = "localhost:6379"
	if c := New(cfg); c == nil {
		t.Fatalf("redis kind should build a cache")
	}

	cfg.Kind = "off"
	if c := New(cfg); c != nil {
		t.Fatalf("off kind should return nil, got %T", c)
	}

	cfg.Kind = "banana"
	if c := New(cfg); c != nil {
		t.Fatalf("unknown kind should return nil, got %T", c)
	}
}
