package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNo_UniqueUnderConcurrency(t *testing.T) {
	require.NoError(t, Init(1))

	const n = 2000
	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			no := GenerateOrderNo()
			mu.Lock()
			seen[no] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateOrderNo(), "ORD"))
	assert.True(t, strings.HasPrefix(GenerateTransactionNo(), "TXN"))
	assert.Len(t, GenerateOrderNo(), 3+14+8)
}
