package fileindex

import (
	"context"
	"runtime"
	"sync"
	"unique"
	"weak"

	"golang.org/x/sync/singleflight"
)

// Cache is a process-wide cache of [Index] values keyed by an arbitrary
// string (typically an installed-database generation id or a transaction
// plan hash), so repeated lookups against the same package set reuse one
// Index instead of rebuilding it, the way claircore's fileCache reuses a
// PathSet per layer digest.
type Cache struct {
	m  sync.Map // map[unique.Handle[string]]weak.Pointer[Index]
	sf singleflight.Group
}

func (c *Cache) cleanupFunc(wp weak.Pointer[Index]) func(unique.Handle[string]) {
	return func(key unique.Handle[string]) {
		c.m.CompareAndDelete(key, wp)
	}
}

// Get returns the Index for key, invoking build to construct it on a
// cache miss. Concurrent Gets for the same key that miss share a single
// build call.
func (c *Cache) Get(ctx context.Context, key string, build func() (*Index, error)) (*Index, error) {
	h := unique.Make(key)
	for {
		v, ok := c.m.Load(h)
		if !ok {
			fn := func() (any, error) {
				if v, ok := c.m.Load(h); ok {
					if idx := v.(weak.Pointer[Index]).Value(); idx != nil {
						return idx, nil
					}
					c.m.CompareAndDelete(h, v)
				}
				idx, err := build()
				if err != nil {
					return nil, err
				}
				wp := weak.Make(idx)
				runtime.AddCleanup(idx, c.cleanupFunc(wp), h)
				c.m.Store(h, wp)
				return idx, nil
			}
			ch := c.sf.DoChan(key, fn)
			select {
			case <-ctx.Done():
				return nil, context.Cause(ctx)
			case res := <-ch:
				if res.Err != nil {
					return nil, res.Err
				}
				return res.Val.(*Index), nil
			}
		}
		if idx := v.(weak.Pointer[Index]).Value(); idx != nil {
			return idx, nil
		}
		c.m.CompareAndDelete(h, v)
	}
}
