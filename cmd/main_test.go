package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Обход запускается по тикам и останавливается закрытием done,
// не трогая канал сигналов завершения
func TestRunSweeper(t *testing.T) {
	var sweeps atomic.Int64
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		runSweeper(5*time.Millisecond, done, func(ctx context.Context) error {
			sweeps.Add(1)
			return nil
		})
		close(stopped)
	}()

	require.Eventually(t, func() bool { return sweeps.Load() >= 2 },
		time.Second, time.Millisecond)

	close(done)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after done was closed")
	}
}

// Ошибка зачистки не останавливает расписание
func TestRunSweeper_KeepsGoingOnError(t *testing.T) {
	var sweeps atomic.Int64
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		runSweeper(5*time.Millisecond, done, func(ctx context.Context) error {
			sweeps.Add(1)
			return context.DeadlineExceeded
		})
		close(stopped)
	}()

	require.Eventually(t, func() bool { return sweeps.Load() >= 2 },
		time.Second, time.Millisecond)

	close(done)
	<-stopped
}
