// Package mempool recycles large scratch buffers used by detection.
package mempool

import "sync"

const classStep = 1024

// sizeClass rounds n up to the next multiple of 1024, with 1024 as the floor.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return ((n + classStep - 1) / classStep) * classStep
}

// Pool is a size-classed pool of slices.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
}

func (p *Pool[T]) pool(cls int) *sync.Pool {
	v, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	cls := sizeClass(n)
	buf, ok := p.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns a slice obtained from Get. Nil is ignored.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	p.pool(sizeClass(cap(full))).Put(full) //nolint:staticcheck // slices are small headers
}

var (
	float32Pool Pool[float32]
	boolPool    Pool[bool]
)

// GetFloat32 returns a zeroed []float32 of length n.
func GetFloat32(n int) []float32 { return float32Pool.Get(n) }

// PutFloat32 recycles a buffer from GetFloat32.
func PutFloat32(buf []float32) { float32Pool.Put(buf) }

// GetBool returns a cleared []bool of length n.
func GetBool(n int) []bool { return boolPool.Get(n) }

// PutBool recycles a buffer from GetBool.
func PutBool(buf []bool) { boolPool.Put(buf) }
