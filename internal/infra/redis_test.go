package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisOptionsDefaults(t *testing.T) {
	opt, err := RedisOptions("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("RedisOptions: %v", err)
	}
	if opt.DB != 2 || opt.ClientName != "oncall" {
		t.Fatalf("unexpected options: db=%d name=%q", opt.DB, opt.ClientName)
	}
	if opt.ReadTimeout != 2*time.Second || opt.WriteTimeout != 2*time.Second || opt.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: %+v", opt)
	}
	if !opt.ContextTimeoutEnabled {
		t.Fatal("expected context deadlines to be honoured")
	}
}

func TestRedisOptionsKeepsURLSettings(t *testing.T) {
	opt, err := RedisOptions("redis://localhost:6379/0?read_timeout=5s&client_name=worker")
	if err != nil {
		t.Fatalf("RedisOptions: %v", err)
	}
	if opt.ReadTimeout != 5*time.Second || opt.ClientName != "worker" {
		t.Fatalf("expected url settings to win, got read=%s name=%q", opt.ReadTimeout, opt.ClientName)
	}
}

func TestRedisOptionsRejectsEmptyURL(t *testing.T) {
	if _, err := RedisOptions(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected value written through client, got %q", got)
	}

	if _, err := NewRedisClient(context.Background(), "redis://127.0.0.1:1"); err == nil {
		t.Fatal("expected ping failure for unreachable redis")
	}
}
