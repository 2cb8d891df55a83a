//go:build integration || e2e

// Package testutil provides test helpers for integration tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisAddr returns the address of the test Redis container (IP:port).
// It first checks BGPWATCH_TEST_REDIS_ADDR, then discovers the Docker container IP.
func RedisAddr() string {
	if addr := os.Getenv("BGPWATCH_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	ip := redisContainerIP()
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

func redisContainerIP() string {
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"bgpwatch-test-redis").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SkipIfNoRedis skips the test if the test Redis container is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set BGPWATCH_TEST_REDIS_ADDR or run a bgpwatch-test-redis container")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// RouterLab returns SSH coordinates of a lab FRR router from
// BGPWATCH_TEST_ROUTER (host[:port]), BGPWATCH_TEST_USER and
// BGPWATCH_TEST_PASSWORD, skipping the test when unset.
func RouterLab(t *testing.T) (host, user, pass string) {
	t.Helper()

	host = os.Getenv("BGPWATCH_TEST_ROUTER")
	if host == "" {
		t.Skip("lab router not available: set BGPWATCH_TEST_ROUTER")
	}
	user = os.Getenv("BGPWATCH_TEST_USER")
	if user == "" {
		user = "admin"
	}
	return host, user, os.Getenv("BGPWATCH_TEST_PASSWORD")
}
