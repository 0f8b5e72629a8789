package controllers_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/application/controllers"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func countingProducer(calls *int32) ports.Producer[struct{}, int] {
	return func(ctx context.Context, _ struct{}) (*ports.Response[int], error) {
		n := atomic.AddInt32(calls, 1)
		return okResponse(int(n)), nil
	}
}

func TestPollingFiresImmediatelyThenOnInterval(t *testing.T) {
	var calls int32
	ctrl := controllers.NewPolling(countingProducer(&calls), &controllers.PollingConfig[int]{Interval: 25 * time.Millisecond})
	defer ctrl.Close()

	ctrl.Start(context.Background(), struct{}{})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, 5*time.Millisecond, "first fetch is immediate")
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, 5*time.Millisecond, "ticks keep firing")
	require.True(t, ctrl.Running())
}

func TestPollingStopCancelsTimer(t *testing.T) {
	var calls int32
	ctrl := controllers.NewPolling(countingProducer(&calls), &controllers.PollingConfig[int]{Interval: 20 * time.Millisecond})
	defer ctrl.Close()

	ctrl.Start(context.Background(), struct{}{})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, 5*time.Millisecond)

	ctrl.Stop()
	require.False(t, ctrl.Running())
	settled := atomic.LoadInt32(&calls)
	time.Sleep(80 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt32(&calls), settled+1, "at most one in-flight tick after stop")
}

func TestPollingRestartRefiresImmediately(t *testing.T) {
	var calls int32
	ctrl := controllers.NewPolling(countingProducer(&calls), &controllers.PollingConfig[int]{Interval: time.Hour})
	defer ctrl.Close()

	ctrl.Start(context.Background(), struct{}{})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	ctrl.Restart(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, ctrl.Running())
}

func TestPollingStartWhileRunningIsNoop(t *testing.T) {
	var calls int32
	ctrl := controllers.NewPolling(countingProducer(&calls), &controllers.PollingConfig[int]{Interval: time.Hour})
	defer ctrl.Close()

	ctrl.Start(context.Background(), struct{}{})
	ctrl.Start(context.Background(), struct{}{})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPollingTickAfterCloseDoesNotWrite(t *testing.T) {
	release := make(chan struct{})
	ctrl := controllers.NewPolling(func(ctx context.Context, _ struct{}) (*ports.Response[int], error) {
		<-release
		return okResponse(99), nil
	}, &controllers.PollingConfig[int]{Interval: time.Hour})

	ctrl.Start(context.Background(), struct{}{})
	time.Sleep(20 * time.Millisecond)
	ctrl.Close()
	close(release)
	time.Sleep(50 * time.Millisecond)

	require.Nil(t, ctrl.State().Data, "a tick resolving after teardown must not mutate state")
}
