package controllers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/application/controllers"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func TestInfiniteAccumulation(t *testing.T) {
	var calls int32
	ctrl := controllers.NewInfinite(pageProducer(25, &calls), &controllers.InfiniteConfig{PageSize: 10})
	defer ctrl.Close()

	require.NoError(t, ctrl.LoadMore(context.Background()))
	st := ctrl.State()
	require.Len(t, st.Items, 10)
	require.Equal(t, 2, st.Page)
	require.True(t, st.HasMore)

	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.NoError(t, ctrl.LoadMore(context.Background()))

	st = ctrl.State()
	require.Len(t, st.Items, 25, "pages append, never replace")
	require.False(t, st.HasMore, "hasMore flips once the fetched page reaches totalPages")

	// Exhausted: further calls never reach the producer.
	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestInfiniteLoadMoreWhileLoadingIsNoop(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	producer := func(ctx context.Context, page, pageSize int) (*ports.Response[[]string], error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &ports.Response[[]string]{
			Data:       []string{"x"},
			Success:    true,
			Pagination: &ports.PaginationInfo{TotalPages: 5},
		}, nil
	}
	ctrl := controllers.NewInfinite(producer, nil)
	defer ctrl.Close()

	go ctrl.LoadMore(context.Background()) //nolint:errcheck
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ctrl.LoadMore(context.Background()), "second call during flight returns immediately")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	close(release)
}

func TestInfiniteReset(t *testing.T) {
	ctrl := controllers.NewInfinite(pageProducer(15, nil), &controllers.InfiniteConfig{PageSize: 10})
	defer ctrl.Close()

	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.False(t, ctrl.State().HasMore)

	ctrl.Reset()
	st := ctrl.State()
	require.Empty(t, st.Items)
	require.Equal(t, 1, st.Page)
	require.True(t, st.HasMore)
}

func TestInfiniteVisibilityTrigger(t *testing.T) {
	var calls int32
	ctrl := controllers.NewInfinite(pageProducer(50, &calls), &controllers.InfiniteConfig{PageSize: 10})
	defer ctrl.Close()

	ctrl.OnVisible(true)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	// Still visible: no second trigger.
	ctrl.OnVisible(true)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// A fresh transition triggers again.
	ctrl.OnVisible(false)
	ctrl.OnVisible(true)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
}

func TestInfiniteErrorSurfaced(t *testing.T) {
	boom := errors.New("boom")
	var failed error
	ctrl := controllers.NewInfinite(func(ctx context.Context, page, pageSize int) (*ports.Response[[]string], error) {
		return nil, boom
	}, &controllers.InfiniteConfig{OnError: func(err error) { failed = err }})
	defer ctrl.Close()

	require.Error(t, ctrl.LoadMore(context.Background()))
	require.ErrorIs(t, failed, boom)
	st := ctrl.State()
	require.Error(t, st.Err)
	require.True(t, st.HasMore, "a failed page does not exhaust the sequence")
}
