package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/skynow/internal/alerts"
	"github.com/i474232898/skynow/internal/weather"
)

// RecordHistory holds every record saved for a city, in insertion order.
type RecordHistory struct {
	Records []weather.Record
}

// MemoryStore is a concurrency-safe, append-only in-memory record store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: weather.CityKey, value: history
	data   map[string]*RecordHistory
	alerts []alerts.Alert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*RecordHistory),
	}
}

// Save appends rec to the city's history. Earlier records are never touched.
func (s *MemoryStore) Save(_ context.Context, rec weather.Record) error {
	key := weather.CityKey(rec.City)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &RecordHistory{}
		s.data[key] = history
	}
	history.Records = append(history.Records, rec.Clone())
	return nil
}

// FindLatest returns the record with the newest timestamp for city.
func (s *MemoryStore) FindLatest(_ context.Context, city string) (weather.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[weather.CityKey(city)]
	if !ok || len(history.Records) == 0 {
		return weather.Record{}, false, nil
	}

	latest := history.Records[0]
	for _, rec := range history.Records[1:] {
		if !rec.Timestamp.Before(latest.Timestamp) {
			latest = rec
		}
	}
	return latest.Clone(), true, nil
}

// FindInRange returns records with from <= timestamp < to, oldest first.
func (s *MemoryStore) FindInRange(_ context.Context, city string, from, to time.Time) ([]weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[weather.CityKey(city)]
	if !ok {
		return []weather.Record{}, nil
	}

	result := make([]weather.Record, 0)
	for _, rec := range history.Records {
		if !rec.Timestamp.Before(from) && rec.Timestamp.Before(to) {
			result = append(result, rec.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// SaveAlert appends a.
func (s *MemoryStore) SaveAlert(_ context.Context, a alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, a)
	return nil
}

// Alerts lists alerts for city, newest first. An empty city lists all.
func (s *MemoryStore) Alerts(_ context.Context, city string) ([]alerts.Alert, error) {
	key := weather.CityKey(city)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]alerts.Alert, 0)
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if key == "" || weather.CityKey(a.City) == key {
			result = append(result, a)
		}
	}
	return result, nil
}
