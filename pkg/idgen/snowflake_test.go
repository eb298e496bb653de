package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDUniqueUnderConcurrency(t *testing.T) {
	const perGoroutine = 1000
	const goroutines = 8

	var mu sync.Mutex
	seen := make(map[int64]struct{}, perGoroutine*goroutines)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, perGoroutine*goroutines, "并发生成的ID出现重复")
}

func TestGenerateTransactionNoFormat(t *testing.T) {
	no := GenerateTransactionNo()

	assert.True(t, strings.HasPrefix(no, "TXN"))
	// TXN + 14位时间 + 8位序列
	assert.Len(t, no, 3+14+8)
}
