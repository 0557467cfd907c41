package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

func TestKey(t *testing.T) {
	a := Key("https://boards.greenhouse.io/acme/jobs/1")
	b := Key("https://boards.greenhouse.io/acme/jobs/2")
	if a == b {
		t.Error("different URLs must not share a key")
	}
	if a != Key("https://boards.greenhouse.io/acme/jobs/1") {
		t.Error("key must be stable")
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("expected prefix, got %s", a)
	}
}

func TestUnreachableRedisReturnsErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, "127.0.0.1:1", time.Hour); err == nil {
		t.Fatal("expected dial error")
	}

	c := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}), time.Hour)
	defer c.Close()
	if _, ok, err := c.Get(ctx, "https://x"); err == nil || ok {
		t.Errorf("expected error and miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "https://x", types.JobPosting{Title: "t"}); err == nil {
		t.Error("expected put error")
	}
}
