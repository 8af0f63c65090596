package benchmark

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReporter_SlowSinkNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	r := newReporter(func(int, int, string) { <-release }, 2)

	start := time.Now()
	for i := 0; i < 100; i++ {
		r.Report(i, 100, "tick")
	}
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	r.Close()
}

func TestReporter_DeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	r := newReporter(func(completed, _ int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, completed)
	}, 16)

	for i := 1; i <= 5; i++ {
		r.Report(i, 5, "")
	}
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestReporter_RecoversSinkPanic(t *testing.T) {
	calls := 0
	r := newReporter(func(int, int, string) {
		calls++
		panic("boom")
	}, 4)
	r.Report(1, 2, "")
	r.Report(2, 2, "")
	r.Close()
	assert.Equal(t, 2, calls)
}

func TestReporter_NilSinkAndDoubleClose(t *testing.T) {
	r := newReporter(nil, 0)
	r.Report(1, 1, "")
	r.Close()
	r.Close()
}
