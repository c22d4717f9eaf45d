package weather_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/skynow/internal/cache"
	"github.com/i474232898/skynow/internal/store"
	"github.com/i474232898/skynow/internal/weather"
)

var testNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu sync.Mutex

	name     string
	reading  weather.Reading
	forecast []weather.Reading
	archive  []weather.Reading

	geocodeErr error
	fetchErr   error

	geocodeCalls  int
	currentCalls  int
	forecastCalls int
	archiveCalls  int
}

func (f *fakeProvider) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeProvider) Geocode(_ context.Context, place string) (weather.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geocodeCalls++
	if f.geocodeErr != nil {
		return weather.Coordinates{}, f.geocodeErr
	}
	return weather.Coordinates{Name: place, Latitude: 1, Longitude: 2}, nil
}

func (f *fakeProvider) Current(context.Context, weather.Coordinates) (weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++
	return f.reading, f.fetchErr
}

func (f *fakeProvider) Forecast(context.Context, weather.Coordinates) ([]weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls++
	return f.forecast, f.fetchErr
}

func (f *fakeProvider) Archive(context.Context, weather.Coordinates, time.Time) ([]weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls++
	return f.archive, f.fetchErr
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls + f.forecastCalls + f.archiveCalls
}

type failingStore struct {
	*store.MemoryStore
	saveErr error
	readErr error
}

func (s *failingStore) Save(ctx context.Context, rec weather.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, rec)
}

func (s *failingStore) FindLatest(ctx context.Context, city string) (weather.Record, bool, error) {
	if s.readErr != nil {
		return weather.Record{}, false, s.readErr
	}
	return s.MemoryStore.FindLatest(ctx, city)
}

type harness struct {
	provider *fakeProvider
	cache    *cache.Memory[weather.Record]
	store    *store.MemoryStore
	resolver *weather.Resolver
}

func newHarness(t *testing.T, opts ...weather.Option) *harness {
	t.Helper()
	h := &harness{
		provider: &fakeProvider{reading: weather.Reading{Temperature: 21, Humidity: 40, Pressure: 1012, Description: "clear sky", WindSpeed: 2}},
		cache:    cache.NewMemory[weather.Record](time.Hour),
		store:    store.NewMemoryStore(),
	}
	opts = append([]weather.Option{weather.WithClock(func() time.Time { return testNow })}, opts...)
	h.resolver = weather.NewResolver(h.provider, h.cache, h.store, opts...)
	return h
}

func TestCurrentFetchesPersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.resolver.Current(ctx, "  Paris ")
	require.NoError(t, err)
	assert.Equal(t, "Paris", rec.City)
	assert.InDelta(t, 21, rec.Temperature, 0.001)
	assert.Equal(t, testNow, rec.Timestamp)
	assert.Equal(t, 1, h.provider.currentCalls)

	stored, ok, err := h.store.FindLatest(ctx, "paris")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, stored)

	cached, ok := h.cache.Get(weather.CacheKey("PARIS"))
	require.True(t, ok)
	assert.Equal(t, rec, cached)
}

func TestCurrentServesWarmCacheWithoutProvider(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.resolver.Current(ctx, "Paris")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := h.resolver.Current(ctx, "paris")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, h.provider.calls())
}

func TestCurrentResultsDoNotAliasCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pm := 12.5
	h.provider.reading.PM25 = &pm

	first, err := h.resolver.Current(ctx, "Paris")
	require.NoError(t, err)
	require.NotNil(t, first.PM25)
	*first.PM25 = 999
	pm = 500

	again, err := h.resolver.Current(ctx, "Paris")
	require.NoError(t, err)
	require.NotNil(t, again.PM25)
	assert.InDelta(t, 12.5, *again.PM25, 0.001)

	*again.PM25 = 999
	stored, ok, err := h.store.FindLatest(ctx, "Paris")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 12.5, *stored.PM25, 0.001)
}

func TestCurrentStalenessWindow(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		wantCalls int
	}{
		{"fresh", 59 * time.Minute, 0},
		{"stale", 61 * time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			old := weather.Record{City: "Paris", Temperature: 5, Pressure: 1013, Timestamp: testNow.Add(-tt.age)}
			require.NoError(t, h.store.Save(ctx, old))

			rec, err := h.resolver.Current(ctx, "Paris")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, h.provider.currentCalls)
			if tt.wantCalls == 0 {
				assert.Equal(t, old, rec)
				_, cached := h.cache.Get(weather.CacheKey("Paris"))
				assert.True(t, cached)
			} else {
				assert.InDelta(t, 21, rec.Temperature, 0.001)
			}
		})
	}
}

func TestCurrentSaveFailureSkipsCacheFill(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{reading: weather.Reading{Temperature: 30}}
	c := cache.NewMemory[weather.Record](time.Hour)
	s := &failingStore{MemoryStore: store.NewMemoryStore(), saveErr: errors.New("disk full")}
	r := weather.NewResolver(provider, c, s, weather.WithClock(func() time.Time { return testNow }))

	rec, err := r.Current(ctx, "Rome")
	require.NoError(t, err)
	assert.InDelta(t, 30, rec.Temperature, 0.001)
	assert.Zero(t, c.Len())

	_, err = r.Current(ctx, "Rome")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.currentCalls)
}

func TestCurrentStoreReadFailureIsAMiss(t *testing.T) {
	provider := &fakeProvider{reading: weather.Reading{Temperature: 12}}
	s := &failingStore{MemoryStore: store.NewMemoryStore(), readErr: errors.New("connection reset")}
	r := weather.NewResolver(provider, cache.NewMemory[weather.Record](time.Hour), s)

	rec, err := r.Current(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.InDelta(t, 12, rec.Temperature, 0.001)
	assert.Equal(t, 1, provider.currentCalls)
}

func TestCurrentPropagatesFailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		geocodeErr error
		fetchErr   error
		want       error
	}{
		{"not_resolved", weather.NewError(weather.ErrLocationNotResolved, "geocode", "fake", nil), nil, weather.ErrLocationNotResolved},
		{"unavailable", nil, weather.NewError(weather.ErrProviderUnavailable, "current", "fake", errors.New("timeout")), weather.ErrProviderUnavailable},
		{"normalization", nil, weather.NewError(weather.ErrNormalization, "current", "fake", nil), weather.ErrNormalization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.provider.geocodeErr = tt.geocodeErr
			h.provider.fetchErr = tt.fetchErr

			_, err := h.resolver.Current(context.Background(), "Paris")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want, weather.KindOf(err))
			assert.Zero(t, h.cache.Len())
		})
	}
}

func TestCurrentRejectsEmptyCity(t *testing.T) {
	h := newHarness(t)
	_, err := h.resolver.Current(context.Background(), "   ")
	assert.ErrorIs(t, err, weather.ErrLocationNotResolved)
	assert.Zero(t, h.provider.geocodeCalls)
}

func TestFailoverOnlyWhenPrimaryUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable", func(t *testing.T) {
		secondary := &fakeProvider{name: "secondary", reading: weather.Reading{Temperature: 17}}
		h := newHarness(t, weather.WithFallback(secondary))
		h.provider.fetchErr = weather.NewError(weather.ErrProviderUnavailable, "current", "fake", nil)

		rec, err := h.resolver.Current(ctx, "Paris")
		require.NoError(t, err)
		assert.InDelta(t, 17, rec.Temperature, 0.001)
		assert.Equal(t, 1, secondary.currentCalls)
	})

	t.Run("not_resolved", func(t *testing.T) {
		secondary := &fakeProvider{name: "secondary"}
		h := newHarness(t, weather.WithFallback(secondary))
		h.provider.geocodeErr = weather.NewError(weather.ErrLocationNotResolved, "geocode", "fake", nil)

		_, err := h.resolver.Current(ctx, "Nowhere")
		assert.ErrorIs(t, err, weather.ErrLocationNotResolved)
		assert.Zero(t, secondary.geocodeCalls)
	})
}

func TestForecastHorizonAndOrdering(t *testing.T) {
	h := newHarness(t)
	for i := 11; i >= 0; i-- {
		h.provider.forecast = append(h.provider.forecast, weather.Reading{
			Timestamp:   testNow.Add(time.Duration(i*3) * time.Hour),
			Temperature: float64(i),
		})
	}

	got, err := h.resolver.Forecast(context.Background(), "Paris")
	require.NoError(t, err)
	require.Len(t, got, weather.ForecastHorizon)
	assert.Equal(t, testNow, got[0].Timestamp)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
		assert.Equal(t, "Paris", got[i].City)
	}

	_, ok, err := h.store.FindLatest(context.Background(), "Paris")
	require.NoError(t, err)
	assert.False(t, ok, "forecast points are not persisted")
}

func TestForecastShortListIsNotPadded(t *testing.T) {
	h := newHarness(t)
	h.provider.forecast = []weather.Reading{{Timestamp: testNow}, {Timestamp: testNow.Add(3 * time.Hour)}}

	got, err := h.resolver.Forecast(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHistoricalServesStoreFirst(t *testing.T) {
	ctx := context.Background()
	archive := &fakeProvider{name: "archive"}
	h := newHarness(t, weather.WithArchive(archive))
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, h.store.Save(ctx, weather.Record{City: "Paris", Temperature: 8, Timestamp: day.Add(15 * time.Hour)}))
	require.NoError(t, h.store.Save(ctx, weather.Record{City: "Paris", Temperature: 6, Timestamp: day.Add(9 * time.Hour)}))

	got, err := h.resolver.Historical(ctx, "Paris", day.Add(20*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 6, got[0].Temperature, 0.001)
	assert.Zero(t, archive.calls())
}

func TestHistoricalArchiveFillIsIdempotent(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	archive := &fakeProvider{name: "archive"}
	for hour := 0; hour < 24; hour++ {
		archive.archive = append(archive.archive, weather.Reading{
			Timestamp:   day.Add(time.Duration(hour) * time.Hour),
			Temperature: float64(hour),
		})
	}
	h := newHarness(t, weather.WithArchive(archive))

	first, err := h.resolver.Historical(ctx, "Berlin", day)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, day.Add(12*time.Hour), first[0].Timestamp)
	assert.InDelta(t, 12, first[0].Temperature, 0.001)
	assert.Equal(t, 1, archive.archiveCalls)

	second, err := h.resolver.Historical(ctx, "berlin", day.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, archive.archiveCalls)
}

func TestHistoricalEmptyArchive(t *testing.T) {
	archive := &fakeProvider{name: "archive", archive: []weather.Reading{}}
	h := newHarness(t, weather.WithArchive(archive))

	got, err := h.resolver.Historical(context.Background(), "Paris", time.Date(1901, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistoricalWithoutArchiveProvider(t *testing.T) {
	h := newHarness(t)

	got, err := h.resolver.Historical(context.Background(), "Paris", testNow)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistoricalArchiveFailure(t *testing.T) {
	archive := &fakeProvider{name: "archive", fetchErr: weather.NewError(weather.ErrProviderUnavailable, "archive", "archive", fmt.Errorf("503"))}
	h := newHarness(t, weather.WithArchive(archive))

	_, err := h.resolver.Historical(context.Background(), "Paris", testNow)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestHistoricalFutureDateIsEmpty(t *testing.T) {
	archive := &fakeProvider{name: "archive", fetchErr: weather.NewError(weather.ErrProviderUnavailable, "archive", "archive", fmt.Errorf("400: start_date out of allowed range"))}
	h := newHarness(t, weather.WithArchive(archive))

	for _, day := range []time.Time{testNow.AddDate(0, 0, 1), testNow.AddDate(0, 0, 10)} {
		got, err := h.resolver.Historical(context.Background(), "Paris", day)
		require.NoError(t, err, day)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Zero(t, archive.calls())
}

func TestLocate(t *testing.T) {
	h := newHarness(t)

	at, err := h.resolver.Locate(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, "Lyon", at.Name)

	_, err = h.resolver.Locate(context.Background(), "")
	assert.ErrorIs(t, err, weather.ErrLocationNotResolved)
}
