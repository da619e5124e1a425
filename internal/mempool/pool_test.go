package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	for in, want := range map[int]int{0: 1024, 1: 1024, 1024: 1024, 1025: 2048, 2048: 2048, 5000: 5120} {
		assert.Equal(t, want, sizeClass(in), in)
	}
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(10)
	require.Len(t, buf, 10)
	assert.GreaterOrEqual(t, cap(buf), 1024)
	for i := range buf {
		buf[i] = 3
	}
	PutFloat32(buf)

	again := GetFloat32(10)
	for _, v := range again {
		require.Zero(t, v)
	}
	PutFloat32(nil)
}

func TestGetBoolIsCleared(t *testing.T) {
	buf := GetBool(2000)
	for i := range buf {
		buf[i] = true
	}
	PutBool(buf)
	for _, v := range GetBool(2000) {
		require.False(t, v)
	}
}

func TestPool_Concurrent(t *testing.T) {
	var p Pool[int]
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 100 {
				b := p.Get(n)
				if len(b) != n {
					t.Errorf("len %d want %d", len(b), n)
				}
				p.Put(b)
			}
		}(g*700 + 1)
	}
	wg.Wait()
}
