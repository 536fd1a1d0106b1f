package kafkaconsumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newTSDedupe(size int) *tsDedupe {
	c, _ := lru.New[string, time.Time](size)
	return &tsDedupe{lru: c}
}

// shouldApply reports whether ts is newer than the last applied event for
// dataset. Redelivered or out-of-order events are skipped.
func (d *tsDedupe) shouldApply(dataset string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(dataset); ok && !ts.After(last) {
		return false
	}
	d.lru.Add(dataset, ts)
	return true
}
