package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDUnique(t *testing.T) {
	Init(1)

	const n = 10000
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		id := NextID()
		require.False(t, seen[id], "重复ID: %d", id)
		seen[id] = true
	}
}

func TestNextIDUniqueConcurrent(t *testing.T) {
	Init(1)

	const workers = 8
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				assert.False(t, seen[id], "重复ID: %d", id)
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}

func TestGenerateTransferNo(t *testing.T) {
	Init(1)

	no := GenerateTransferNo()
	assert.True(t, strings.HasPrefix(no, "TRF"))
	// TRF + 14 位时间戳 + 8 位序号
	assert.Len(t, no, 25)

	assert.NotEqual(t, no, GenerateTransferNo())
}

func TestGenerateEventNo(t *testing.T) {
	Init(1)

	no := GenerateEventNo()
	assert.True(t, strings.HasPrefix(no, "EVT"))
	assert.Len(t, no, 25)
}
