package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisFixedWindowLimiter(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("third request should be limited")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("other keys have their own quota")
	}
}

func TestRedisFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "", 5, time.Minute); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 0, time.Minute); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
