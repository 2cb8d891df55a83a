//go:build integration

package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/bgpwatch/internal/testutil"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

func TestRedisLocker_AcquireRelease(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	addr := testutil.RedisAddr()

	a := device.NewRedisLocker(device.RedisLockOptions{Addr: addr, Holder: "a", TTL: 10 * time.Second, Wait: 300 * time.Millisecond})
	defer a.Close()
	b := device.NewRedisLocker(device.RedisLockOptions{Addr: addr, Holder: "b", TTL: 10 * time.Second, Wait: 300 * time.Millisecond})
	defer b.Close()

	ctx := context.Background()
	router := "it-router-" + time.Now().Format("150405.000")

	unlock, err := a.Lock(ctx, router)
	if err != nil {
		t.Fatalf("a.Lock error = %v", err)
	}

	if _, err := b.Lock(ctx, router); !errors.Is(err, util.ErrDeviceLocked) {
		t.Fatalf("b.Lock error = %v, want ErrDeviceLocked", err)
	}

	unlock()

	unlockB, err := b.Lock(ctx, router)
	if err != nil {
		t.Fatalf("b.Lock after release error = %v", err)
	}
	unlockB()
}
