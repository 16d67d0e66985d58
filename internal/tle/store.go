package tle

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Store publishes the current element dataset together with a lookup
// index. Readers never block; installing a dataset is one pointer swap.
// Lock and Unlock serialize loaders so overlapping refreshes do not both
// hit the network.
type Store struct {
	current atomic.Pointer[indexed]
	mu      sync.Mutex
}

type indexed struct {
	ds     *Dataset
	byName map[string]int
	byID   map[int]int
}

func index(ds *Dataset) *indexed {
	ix := &indexed{
		ds:     ds,
		byName: make(map[string]int, len(ds.Satellites)),
		byID:   make(map[int]int, len(ds.Satellites)),
	}
	// First record wins for duplicate names or catalog numbers.
	for i, e := range ds.Satellites {
		if _, ok := ix.byName[e.Name]; !ok {
			ix.byName[e.Name] = i
		}
		if _, ok := ix.byID[e.NORADID]; !ok {
			ix.byID[e.NORADID] = i
		}
	}
	return ix
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil before the first load.
func (s *Store) Get() *Dataset {
	if ix := s.current.Load(); ix != nil {
		return ix.ds
	}
	return nil
}

// Set installs ds. A nil dataset is ignored so a failed load never
// clears what readers already have.
func (s *Store) Set(ds *Dataset) {
	if ds == nil {
		return
	}
	s.current.Store(index(ds))
}

// Lookup finds a satellite by exact name, falling back to the NORAD
// catalog number when key is numeric.
func (s *Store) Lookup(key string) (*Entry, bool) {
	ix := s.current.Load()
	if ix == nil {
		return nil, false
	}
	if i, ok := ix.byName[key]; ok {
		return &ix.ds.Satellites[i], true
	}
	if id, err := strconv.Atoi(key); err == nil {
		if i, ok := ix.byID[id]; ok {
			return &ix.ds.Satellites[i], true
		}
	}
	return nil, false
}

// AgeSeconds returns how long ago the current dataset was fetched, or -1
// if nothing is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.Get()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }
