//go:build !solution

package scenario

import "sync/atomic"

// Resource is the value actors protect with the lock. Gates don't exclude
// each other, so the value itself is atomic to keep the harness race-free.
type Resource struct {
	v atomic.Int64
}

// NewResource returns a resource holding v.
func NewResource(v int64) *Resource {
	r := &Resource{}
	r.v.Store(v)
	return r
}

func (r *Resource) Load() int64 {
	return r.v.Load()
}

func (r *Resource) Store(v int64) {
	r.v.Store(v)
}
