package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDeduper(ttl time.Duration, max int) (*Deduper, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	d := New(ttl, max)
	d.now = c.Now
	return d, c
}

func TestShouldProcess(t *testing.T) {
	d, _ := newTestDeduper(time.Minute, 10)

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))
	assert.Equal(t, 2, d.Len())
}

func TestEmptyKeyAlwaysProcessed(t *testing.T) {
	d, _ := newTestDeduper(time.Minute, 10)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Equal(t, 0, d.Len())
}

func TestExpiry(t *testing.T) {
	d, c := newTestDeduper(time.Minute, 10)
	assert.True(t, d.ShouldProcess("a"))

	c.Advance(59 * time.Second)
	assert.False(t, d.ShouldProcess("a"))

	c.Advance(time.Second)
	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
}

func TestCapacityEvictsExpiredFirst(t *testing.T) {
	d, c := newTestDeduper(time.Minute, 5)
	for i := 0; i < 5; i++ {
		d.ShouldProcess(fmt.Sprintf("old-%d", i))
	}
	c.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		d.ShouldProcess(fmt.Sprintf("new-%d", i))
	}
	assert.Equal(t, 3, d.Len())
}

func TestCapacityEvictsOldestWhenNothingExpired(t *testing.T) {
	d, c := newTestDeduper(time.Hour, 3)
	for i := 0; i < 10; i++ {
		c.Advance(time.Second)
		assert.True(t, d.ShouldProcess(fmt.Sprintf("k-%d", i)))
		assert.LessOrEqual(t, d.Len(), 3)
	}

	// the three newest are still remembered, older ones were evicted
	assert.False(t, d.ShouldProcess("k-9"))
	assert.False(t, d.ShouldProcess("k-7"))
	assert.True(t, d.ShouldProcess("k-0"))
	assert.Equal(t, 3, d.Len())
}

func TestDefaults(t *testing.T) {
	d := New(0, 0)
	assert.Equal(t, DefaultTTL, d.ttl)
	assert.Equal(t, DefaultSize, d.max)
}
