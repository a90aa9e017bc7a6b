// Package storetest provides helpers for testing code written against
// store.Store.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

// Clock is a manually advanced clock for the memory store.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fault decides whether an operation on path fails. Returning nil lets the
// call through.
type Fault func(op, path string) error

// Faulty wraps a Store and injects errors chosen by Fault.
type Faulty struct {
	store.Store

	mu    sync.Mutex
	fault Fault
	calls map[string]int
}

func NewFaulty(s store.Store) *Faulty {
	return &Faulty{Store: s, calls: make(map[string]int)}
}

func (f *Faulty) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fault = fault
}

// Calls returns how many times op was invoked.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op, path string) error {
	f.mu.Lock()
	f.calls[op]++
	fault := f.fault
	f.mu.Unlock()

	if fault == nil {
		return nil
	}
	return fault(op, path)
}

func (f *Faulty) Put(ctx context.Context, doc domain.DocumentPath, fields store.Fields) error {
	if err := f.check("put", doc.String()); err != nil {
		return err
	}
	return f.Store.Put(ctx, doc, fields)
}

func (f *Faulty) Update(ctx context.Context, doc domain.DocumentPath, fields store.Fields) error {
	if err := f.check("update", doc.String()); err != nil {
		return err
	}
	return f.Store.Update(ctx, doc, fields)
}

func (f *Faulty) Add(ctx context.Context, coll domain.CollectionPath, fields store.Fields) (string, error) {
	if err := f.check("add", coll.String()); err != nil {
		return "", err
	}
	return f.Store.Add(ctx, coll, fields)
}

func (f *Faulty) Get(ctx context.Context, doc domain.DocumentPath) (store.Document, error) {
	if err := f.check("get", doc.String()); err != nil {
		return store.Document{}, err
	}
	return f.Store.Get(ctx, doc)
}

func (f *Faulty) Delete(ctx context.Context, doc domain.DocumentPath) (bool, error) {
	if err := f.check("delete", doc.String()); err != nil {
		return false, err
	}
	return f.Store.Delete(ctx, doc)
}

func (f *Faulty) List(ctx context.Context, coll domain.CollectionPath, filters ...store.Filter) ([]store.Document, error) {
	if err := f.check("list", coll.String()); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, coll, filters...)
}

func (f *Faulty) RecursiveDelete(ctx context.Context, doc domain.DocumentPath) error {
	if err := f.check("recursive_delete", doc.String()); err != nil {
		return err
	}
	return f.Store.RecursiveDelete(ctx, doc)
}

func (f *Faulty) Children(ctx context.Context, coll domain.CollectionPath) ([]string, error) {
	if err := f.check("children", coll.String()); err != nil {
		return nil, err
	}
	return f.Store.Children(ctx, coll)
}

func (f *Faulty) Subscribe(ctx context.Context, coll domain.CollectionPath, filters ...store.Filter) (*store.Subscription[[]store.Document], error) {
	if err := f.check("subscribe", coll.String()); err != nil {
		return nil, err
	}
	return f.Store.Subscribe(ctx, coll, filters...)
}

// BatchCommit is checked once per batch with the path of the first op.
func (f *Faulty) BatchCommit(ctx context.Context, ops []store.Op) error {
	path := ""
	if len(ops) > 0 {
		path = ops[0].Path.String()
	}
	if err := f.check("batch_commit", path); err != nil {
		return err
	}
	return f.Store.BatchCommit(ctx, ops)
}
