// Package testutil starts the throwaway infrastructure used by integration tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce     sync.Once
	redisEndpoint string
	redisErr      error
)

// GetRedisAddress returns the host:port of a shared Redis container, starting
// it on first use. It returns "" (and logs the reason) when no container
// runtime is available, so callers can skip.
//
// The container is shared by every test in the package and is reaped by the
// testcontainers sidecar when the test binary exits.
func GetRedisAddress(t *testing.T) string {
	t.Helper()

	redisOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		redisC, err := testcontainers.Run(
			ctx, "redis:7",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			redisErr = err
			return
		}

		endpoint, err := redisC.Endpoint(ctx, "")
		if err != nil {
			_ = redisC.Terminate(context.Background()) // best-effort cleanup
			redisErr = err
			return
		}
		redisEndpoint = endpoint
	})

	if redisErr != nil {
		t.Logf("redis container: %v", redisErr)
	}
	return redisEndpoint
}
