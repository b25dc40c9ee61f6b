package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"atsnp/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]memoryRun
	seq         int
}

type memoryRun struct {
	payload []byte
	seq     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]memoryRun)
	return nil
}

// SaveRun stores an encoded copy so callers cannot mutate persisted runs.
func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}

	s.seq++
	s.runs[run.ID] = memoryRun{payload: payload, seq: s.seq}
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run, err := DecodeRun(stored.payload)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type indexed struct {
		run model.RunRecord
		seq int
	}
	all := make([]indexed, 0, len(s.runs))
	for _, stored := range s.runs {
		run, err := DecodeRun(stored.payload)
		if err != nil {
			return nil, err
		}
		all = append(all, indexed{run: run, seq: stored.seq})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].run.CreatedAtUTC == all[j].run.CreatedAtUTC {
			// Prefer later saves for equal timestamps.
			return all[i].seq > all[j].seq
		}
		return all[i].run.CreatedAtUTC > all[j].run.CreatedAtUTC
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]model.RunRecord, 0, len(all))
	for _, item := range all {
		out = append(out, item.run)
	}
	return out, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	return nil
}
