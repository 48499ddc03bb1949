package redis

import (
	"testing"

	"github.com/kiramarket/kirama-backend/pkg/config"
)

func configRedis(url string) config.RedisConfig {
	return config.RedisConfig{URL: url}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}

	if got := c.IdempotencyKey("cash_confirmation", "abc"); got != "km:idempotency:cash_confirmation:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.RateLimitKey("scan:1.2.3.4"); got != "km:rate_limit:scan:1.2.3.4" {
		t.Fatalf("unexpected rate limit key %q", got)
	}
	if got := c.LockKey("assignment_sweep"); got != "km:lock:assignment_sweep" {
		t.Fatalf("unexpected lock key %q", got)
	}
	if got := c.EventChannel("dispatch"); got != "km:events:dispatch" {
		t.Fatalf("unexpected event channel %q", got)
	}
	if got := c.UserChannel("user-9"); got != "km:events:user:user-9" {
		t.Fatalf("unexpected user channel %q", got)
	}
}

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	c := &Client{}
	if got := c.buildKey("a", "", "b"); got != "km:a:b" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configRedis("")); err == nil {
		t.Fatal("expected error when url and address are missing")
	}
	opts, err := optionsFromConfig(configRedis("redis://localhost:6379/2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 {
		t.Fatalf("expected db 2 from url, got %d", opts.DB)
	}
}
