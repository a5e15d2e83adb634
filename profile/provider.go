package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// StaticProvider serves a fixed set of profiles from memory.
type StaticProvider struct {
	profiles map[string]*Profile
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider builds a provider over the given profiles, keyed by id.
func NewStaticProvider(profiles ...*Profile) *StaticProvider {
	m := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &StaticProvider{profiles: m}
}

// Get returns a copy of the profile so callers cannot mutate shared state.
func (s *StaticProvider) Get(_ context.Context, id string) (*Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	copied := *p
	return &copied, nil
}

// FileProvider loads profiles from a JSON document, either a single object or
// an array of profiles. The file is read once and cached.
type FileProvider struct {
	path  string
	once  sync.Once
	err   error
	inner *StaticProvider
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider builds a provider over the JSON file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Get resolves a profile, loading the file on first use.
func (f *FileProvider) Get(ctx context.Context, id string) (*Profile, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.Get(ctx, id)
}

func (f *FileProvider) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.err = fmt.Errorf("failed to read profiles %s: %w", f.path, err)
		return
	}

	var profiles []*Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		var single Profile
		if err := json.Unmarshal(data, &single); err != nil {
			f.err = fmt.Errorf("failed to decode profiles %s: %w", f.path, err)
			return
		}
		profiles = []*Profile{&single}
	}

	f.inner = NewStaticProvider(profiles...)
}
