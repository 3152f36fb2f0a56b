// Package cache provides the in-memory response cache backing the HTTP
// surface: bounded, TTL-expiring, least-recently-used eviction.
package cache

import "time"

// Cache is a generic keyed cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Len() int
}

// Expirer is implemented by caches that can drop expired entries in bulk.
type Expirer interface {
	RemoveExpired() int
}

// Janitor periodically sweeps expired entries out of registered caches so
// memory is reclaimed even for keys nobody reads again.
type Janitor struct {
	caches []Expirer
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Register adds a cache to the sweep set. Not safe to call after Start.
func (j *Janitor) Register(c Expirer) {
	j.caches = append(j.caches, c)
}

// Start begins sweeping at the given interval.
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range j.caches {
				c.RemoveExpired()
			}
		case <-j.stopCh:
			return
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.doneCh
}
