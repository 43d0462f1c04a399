package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTimes_AlignsToInterval(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), time.Hour, 10*time.Second)

	now := time.Date(2026, 8, 25, 14, 37, 12, 0, time.UTC)
	nextClose, wakeAt, untilClose, wait := s.nextTimes(now)

	assert.Equal(t, time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, nextClose.Add(10*time.Second), wakeAt)
	assert.Equal(t, nextClose.Sub(now), untilClose)
	assert.Equal(t, wakeAt.Sub(now), wait)
}

func TestNextTimes_ExactBoundary(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), time.Hour, 0)

	// 正好在整点：下一次收盘是下一个整点，而不是当下。
	now := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	nextClose, _, _, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, time.Hour, wait)
}

func TestStart_FiresAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewAlignedScheduler(ctx, 20*time.Millisecond, 0)
	var fired atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(func() { fired.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return fired.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("取消后调度循环没有退出")
	}
}

func TestStart_RunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewAlignedScheduler(ctx, time.Hour, 0)
	s.RunImmediately = true

	var fired atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(func() { fired.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestStart_InvalidConfigExits(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), 0, 0)
	finished := make(chan struct{})
	go func() {
		s.Start(func() {})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("非法 interval 应当直接退出")
	}

	var nilSched *AlignedScheduler
	nilSched.Start(func() {}) // 不 panic 即可
}
