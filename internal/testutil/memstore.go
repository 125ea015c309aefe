package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage"
)

// MemStore is an in-memory storage.AssetStore. Paths listed in FailDelete make
// Delete return an upstream error; FailAll fails every call.
type MemStore struct {
	mu         sync.Mutex
	files      map[string][]byte
	FailDelete map[string]bool
	FailAll    bool
	Deleted    []string
	Lists      int
}

var errUnavailable = errors.New("asset store unavailable")

func NewMemStore() *MemStore {
	return &MemStore{files: map[string][]byte{}, FailDelete: map[string]bool{}}
}

func (m *MemStore) Store(ctx context.Context, p string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return errUnavailable
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.files[p] = data
	return nil
}

func (m *MemStore) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil, errUnavailable
	}
	data, ok := m.files[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemStore) List(ctx context.Context, folder string) ([]storage.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++
	if m.FailAll {
		return nil, errUnavailable
	}
	prefix := strings.TrimSuffix(folder, "/") + "/"
	var out []storage.Entry
	for p, data := range m.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, storage.Entry{Path: p, Name: path.Base(p), Size: int64(len(data)), ModifiedAt: time.Now()})
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, p)
	if m.FailAll || m.FailDelete[p] {
		return errUnavailable
	}
	delete(m.files, p)
	return nil
}

func (m *MemStore) DeleteFolder(ctx context.Context, folder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, folder)
	if m.FailAll || m.FailDelete[folder] {
		return errUnavailable
	}
	prefix := strings.TrimSuffix(folder, "/") + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
	return nil
}

// Has reports whether p is stored.
func (m *MemStore) Has(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok
}

// Put seeds a file.
func (m *MemStore) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = data
}

// DeletedPaths returns a copy of every path passed to Delete or DeleteFolder.
func (m *MemStore) DeletedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deleted...)
}
