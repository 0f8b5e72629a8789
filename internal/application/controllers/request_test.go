package controllers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/application/controllers"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/avatarctic/client-runtime/go/internal/infrastructure/memcache"
	"github.com/stretchr/testify/require"
)

func okResponse[T any](data T) *ports.Response[T] {
	return &ports.Response[T]{Data: data, Success: true}
}

func TestExecuteSuccess(t *testing.T) {
	ctrl := controllers.NewRequest(func(ctx context.Context, args string) (*ports.Response[string], error) {
		return okResponse("echo:" + args), nil
	}, nil)

	data, err := ctrl.Execute(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "echo:hi", *data)

	st := ctrl.State()
	require.False(t, st.Loading)
	require.NoError(t, st.Err)
	require.Equal(t, "echo:hi", *st.Data)
}

func TestRetryCountWithLinearBackoff(t *testing.T) {
	var calls int32
	boom := errors.New("boom")
	ctrl := controllers.NewRequest(func(ctx context.Context, _ struct{}) (*ports.Response[string], error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}, &controllers.RequestConfig[struct{}, string]{
		Retries:    2,
		RetryDelay: 10 * time.Millisecond,
	})

	start := time.Now()
	_, err := ctrl.Execute(context.Background(), struct{}{})
	elapsed := time.Since(start)

	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls), "retries=2 means exactly 3 attempts")
	// Waits are delay*1 then delay*2.
	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)

	st := ctrl.State()
	require.False(t, st.Loading)
	require.Error(t, st.Err)
	require.Nil(t, st.Data)
}

func TestIntermediateFailureThenSuccess(t *testing.T) {
	var calls int32
	ctrl := controllers.NewRequest(func(ctx context.Context, _ struct{}) (*ports.Response[int], error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("flaky")
		}
		return okResponse(7), nil
	}, &controllers.RequestConfig[struct{}, int]{
		Retries:    2,
		RetryDelay: time.Millisecond,
	})

	data, err := ctrl.Execute(context.Background(), struct{}{})
	require.NoError(t, err)
	require.Equal(t, 7, *data)
	require.NoError(t, ctrl.State().Err, "intermediate failures are swallowed")
}

func TestCacheShortCircuit(t *testing.T) {
	var calls int32
	cache := memcache.New(nil, nil)
	ctrl := controllers.NewRequest(func(ctx context.Context, args string) (*ports.Response[string], error) {
		atomic.AddInt32(&calls, 1)
		return okResponse("value-" + args), nil
	}, &controllers.RequestConfig[string, string]{
		Name:     "things",
		Cache:    cache,
		CacheTTL: time.Minute,
	})

	_, err := ctrl.Execute(context.Background(), "a")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	data, err := ctrl.Execute(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "value-a", *data)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "warm cache must not invoke the producer")

	// Different args miss.
	_, err = ctrl.Execute(context.Background(), "b")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestEnvelopeRejection(t *testing.T) {
	ctrl := controllers.NewRequest(func(ctx context.Context, _ struct{}) (*ports.Response[string], error) {
		return &ports.Response[string]{Success: false, Message: "nope"}, nil
	}, nil)

	_, err := ctrl.Execute(context.Background(), struct{}{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}

func TestCallbacks(t *testing.T) {
	var got string
	var failed error
	ctrl := controllers.NewRequest(func(ctx context.Context, args string) (*ports.Response[string], error) {
		if args == "bad" {
			return nil, errors.New("broken")
		}
		return okResponse(args), nil
	}, &controllers.RequestConfig[string, string]{
		OnSuccess: func(data string) { got = data },
		OnError:   func(err error) { failed = err },
	})

	_, err := ctrl.Execute(context.Background(), "ok")
	require.NoError(t, err)
	require.Equal(t, "ok", got)

	_, err = ctrl.Execute(context.Background(), "bad")
	require.Error(t, err)
	require.Error(t, failed)
}

func TestRefetchUsesLastArgs(t *testing.T) {
	var last string
	ctrl := controllers.NewRequest(func(ctx context.Context, args string) (*ports.Response[string], error) {
		last = args
		return okResponse(args), nil
	}, nil)

	_, err := ctrl.Execute(context.Background(), "first")
	require.NoError(t, err)

	_, err = ctrl.Refetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", last)
}

func TestResetClearsStateNotCache(t *testing.T) {
	cache := memcache.New(nil, nil)
	ctrl := controllers.NewRequest(func(ctx context.Context, args string) (*ports.Response[string], error) {
		return okResponse(args), nil
	}, &controllers.RequestConfig[string, string]{Name: "r", Cache: cache})

	_, err := ctrl.Execute(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, cache.Has(`r:"x"`))

	ctrl.Reset()
	st := ctrl.State()
	require.Nil(t, st.Data)
	require.NoError(t, st.Err)
	require.False(t, st.Loading)
	require.True(t, cache.Has(`r:"x"`), "reset must not touch the cache")
}

func TestCloseSuppressesInFlightResult(t *testing.T) {
	release := make(chan struct{})
	ctrl := controllers.NewRequest(func(ctx context.Context, _ struct{}) (*ports.Response[string], error) {
		<-release
		return okResponse("late"), nil
	}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Execute(context.Background(), struct{}{}) //nolint:errcheck
	}()

	// Let the call get in flight, then tear the owner down.
	time.Sleep(20 * time.Millisecond)
	ctrl.Close()
	close(release)
	<-done

	st := ctrl.State()
	require.Nil(t, st.Data, "a resolution after teardown must not be written")
}

func TestImmediateFiresOnCreation(t *testing.T) {
	var calls int32
	args := "boot"
	controllers.NewRequest(func(ctx context.Context, a string) (*ports.Response[string], error) {
		atomic.AddInt32(&calls, 1)
		return okResponse(a), nil
	}, &controllers.RequestConfig[string, string]{Immediate: &args})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 10*time.Millisecond)
}
