package mapkit

import "sync"

// VectorSource holds the features of a layer.
type VectorSource interface {
	AddFeature(f *Feature)
	RemoveFeature(f *Feature) bool
	Clear()
	Features() []*Feature
	FeatureByID(collection, id string) *Feature
}

// MemorySource is an ordered in-memory VectorSource.
type MemorySource struct {
	mu       sync.RWMutex
	features []*Feature
}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// AddFeature appends f unless the same feature is already present.
func (s *MemorySource) AddFeature(f *Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.features {
		if cur == f {
			return
		}
	}
	s.features = append(s.features, f)
}

func (s *MemorySource) RemoveFeature(f *Feature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.features {
		if cur == f {
			s.features = append(s.features[:i], s.features[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemorySource) Clear() {
	s.mu.Lock()
	s.features = nil
	s.mu.Unlock()
}

func (s *MemorySource) Features() []*Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Feature, len(s.features))
	copy(out, s.features)
	return out
}

func (s *MemorySource) FeatureByID(collection, id string) *Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.features {
		if f.Collection == collection && f.ID == id {
			return f
		}
	}
	return nil
}

func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}
