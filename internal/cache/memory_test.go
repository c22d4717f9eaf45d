package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/skynow/internal/weather"
)

func TestMemoryMissIsNotAnError(t *testing.T) {
	c := NewMemory[weather.Record](time.Minute)

	rec, ok := c.Get("weather:nowhere")
	assert.False(t, ok)
	assert.Equal(t, weather.Record{}, rec)
}

func TestMemoryPutGet(t *testing.T) {
	c := NewMemory[weather.Record](time.Minute)
	want := weather.Record{City: "Paris", Temperature: 21.5, Timestamp: time.Now().UTC()}

	c.Put(weather.CacheKey("Paris"), want, 0)

	got, ok := c.Get("weather:paris")
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryEntryExpires(t *testing.T) {
	c := NewMemory[string](time.Minute)

	c.Put("k", "v", 20*time.Millisecond)
	_, ok := c.Get("k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryEvictAndFlush(t *testing.T) {
	c := NewMemory[[]weather.Record](time.Minute)
	c.Put("a", []weather.Record{{City: "A"}}, 0)
	c.Put("b", []weather.Record{{City: "B"}}, 0)

	c.Evict("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestMemorySatisfiesWeatherCache(t *testing.T) {
	var _ weather.Cache = NewMemory[weather.Record](time.Minute)
}
