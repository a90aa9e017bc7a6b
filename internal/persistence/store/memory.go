package store

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/lobby/internal/domain"
)

var ErrClosed = errors.New("store closed")

type memoryWatcher struct {
	coll   string
	notify chan struct{}
}

// Memory is an in-process Store. Every operation runs under one lock, so
// BatchCommit is trivially atomic.
type Memory struct {
	docs     map[string]Document // full path -> document
	watchers map[*memoryWatcher]struct{}
	now      func() time.Time
	closed   bool
	mu       *sync.RWMutex
}

// NewMemory creates an empty store. now is the store's server clock; nil
// means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		docs:     make(map[string]Document),
		watchers: make(map[*memoryWatcher]struct{}),
		now:      now,
		mu:       &sync.RWMutex{},
	}
}

func (m *Memory) resolve(fields Fields) Fields {
	out := make(Fields, len(fields))
	now := m.now().UTC()
	for k, v := range fields {
		if v == ServerTimestamp {
			v = now
		}
		out[k] = v
	}
	return out
}

func (m *Memory) notify(paths ...string) {
	for w := range m.watchers {
		for _, p := range paths {
			if strings.HasPrefix(p, w.coll+"/") && !strings.Contains(p[len(w.coll)+1:], "/") {
				select {
				case w.notify <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

func (m *Memory) put(doc domain.DocumentPath, fields Fields) {
	m.docs[doc.String()] = Document{Path: doc, Fields: m.resolve(fields)}
	m.notify(doc.String())
}

func (m *Memory) update(doc domain.DocumentPath, fields Fields) error {
	existing, ok := m.docs[doc.String()]
	if !ok {
		return domain.ErrNotFound
	}
	merged := maps.Clone(existing.Fields)
	maps.Copy(merged, m.resolve(fields))
	m.docs[doc.String()] = Document{Path: doc, Fields: merged}
	m.notify(doc.String())
	return nil
}

func (m *Memory) delete(doc domain.DocumentPath) bool {
	if _, ok := m.docs[doc.String()]; !ok {
		return false
	}
	delete(m.docs, doc.String())
	m.notify(doc.String())
	return true
}

func (m *Memory) Put(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Unavailable("put", ErrClosed)
	}

	m.put(doc, fields)
	return nil
}

func (m *Memory) Update(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Unavailable("update", ErrClosed)
	}

	return m.update(doc, fields)
}

func (m *Memory) Add(ctx context.Context, coll domain.CollectionPath, fields Fields) (string, error) {
	key := uuid.NewString()
	if err := m.Put(ctx, coll.Doc(key), fields); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Get(ctx context.Context, doc domain.DocumentPath) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Document{}, domain.Unavailable("get", ErrClosed)
	}

	d, ok := m.docs[doc.String()]
	if !ok {
		return Document{}, domain.ErrNotFound
	}
	return Document{Path: d.Path, Fields: maps.Clone(d.Fields)}, nil
}

func (m *Memory) Delete(ctx context.Context, doc domain.DocumentPath) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, domain.Unavailable("delete", ErrClosed)
	}

	return m.delete(doc), nil
}

func (m *Memory) list(coll domain.CollectionPath, filters []Filter) []Document {
	prefix := coll.String() + "/"
	docs := make([]Document, 0)
	for p, d := range m.docs {
		if !strings.HasPrefix(p, prefix) || strings.Contains(p[len(prefix):], "/") {
			continue
		}
		if !matchAll(d.Fields, filters) {
			continue
		}
		docs = append(docs, Document{Path: d.Path, Fields: maps.Clone(d.Fields)})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Key() < docs[j].Key()
	})
	return docs
}

func (m *Memory) List(ctx context.Context, coll domain.CollectionPath, filters ...Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, domain.Unavailable("list", ErrClosed)
	}

	return m.list(coll, filters), nil
}

func (m *Memory) Subscribe(ctx context.Context, coll domain.CollectionPath, filters ...Filter) (*Subscription[[]Document], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.Unavailable("subscribe", ErrClosed)
	}

	w := &memoryWatcher{coll: coll.String(), notify: make(chan struct{}, 1)}
	w.notify <- struct{}{} // initial snapshot
	m.watchers[w] = struct{}{}

	return NewSubscription(ctx, func(ctx context.Context, emit func([]Document) bool) error {
		defer func() {
			m.mu.Lock()
			delete(m.watchers, w)
			m.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-w.notify:
			}

			m.mu.RLock()
			closed := m.closed
			docs := m.list(coll, filters)
			m.mu.RUnlock()

			if closed {
				return domain.Unavailable("subscribe", ErrClosed)
			}
			if !emit(docs) {
				return nil
			}
		}
	}), nil
}

func (m *Memory) BatchCommit(ctx context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Unavailable("batch commit", ErrClosed)
	}

	// validate first so a failing update leaves nothing applied
	pending := make(map[string]bool)
	for _, op := range ops {
		key := op.Path.String()
		switch op.Kind {
		case OpPut:
			pending[key] = true
		case OpDelete:
			pending[key] = false
		case OpUpdate:
			exists, seen := pending[key]
			if !seen {
				_, exists = m.docs[key]
			}
			if !exists {
				return domain.ErrNotFound
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			m.put(op.Path, op.Fields)
		case OpUpdate:
			_ = m.update(op.Path, op.Fields)
		case OpDelete:
			m.delete(op.Path)
		}
	}
	return nil
}

func (m *Memory) RecursiveDelete(ctx context.Context, doc domain.DocumentPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Unavailable("recursive delete", ErrClosed)
	}

	self := doc.String()
	removed := make([]string, 0)
	for p := range m.docs {
		if p != self && doc.Contains(p) {
			delete(m.docs, p)
			removed = append(removed, p)
		}
	}
	if _, ok := m.docs[self]; ok {
		delete(m.docs, self)
		removed = append(removed, self)
	}
	m.notify(removed...)
	return nil
}

func (m *Memory) Children(ctx context.Context, coll domain.CollectionPath) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, domain.Unavailable("children", ErrClosed)
	}

	prefix := coll.String() + "/"
	seen := make(map[string]struct{})
	for p := range m.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		key, _, _ := strings.Cut(p[len(prefix):], "/")
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for w := range m.watchers {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
	return nil
}
