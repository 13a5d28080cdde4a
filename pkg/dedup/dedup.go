// Package dedup remembers recently seen message keys so that QoS 1
// redeliveries of the same sensor payload are applied once.
package dedup

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 10000
)

type entry struct {
	key     string
	expires time.Time
}

// Deduper holds at most max keys, each for ttl. Keys expire in the order they
// were recorded, so the oldest entry is always at the front of order.
type Deduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	now   func() time.Time
	seen  map[string]*list.Element
	order *list.List
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultSize
	}
	return &Deduper{
		ttl:   ttl,
		max:   max,
		now:   time.Now,
		seen:  make(map[string]*list.Element, max),
		order: list.New(),
	}
}

// ShouldProcess records key and reports whether it was not already seen
// within the ttl. An empty key is never recorded.
func (d *Deduper) ShouldProcess(key string) bool {
	if key == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, expires: now.Add(d.ttl)})
	for d.order.Len() > d.max {
		d.drop(d.order.Front())
	}
	return true
}

// Len reports how many keys are remembered.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

func (d *Deduper) expire(now time.Time) {
	for e := d.order.Front(); e != nil; e = d.order.Front() {
		if now.Before(e.Value.(*entry).expires) {
			return
		}
		d.drop(e)
	}
}

func (d *Deduper) drop(e *list.Element) {
	delete(d.seen, e.Value.(*entry).key)
	d.order.Remove(e)
}
