package store

import (
	"context"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
)

// Fields is the content of a document. Values are strings, numbers, bools,
// time.Time or ServerTimestamp.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp marks a field the store fills with its own clock at
// write time.
var ServerTimestamp = serverTimestamp{}

type Document struct {
	Path   domain.DocumentPath
	Fields Fields
}

func (d Document) Key() string {
	return d.Path.Key()
}

func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

func (d Document) Time(field string) time.Time {
	t, _ := d.Fields[field].(time.Time)
	return t
}

type OpKind int

const (
	OpPut OpKind = iota
	OpUpdate
	OpDelete
)

// Op is one write inside a BatchCommit.
type Op struct {
	Kind   OpKind
	Path   domain.DocumentPath
	Fields Fields
}

func PutOp(path domain.DocumentPath, fields Fields) Op {
	return Op{Kind: OpPut, Path: path, Fields: fields}
}

func UpdateOp(path domain.DocumentPath, fields Fields) Op {
	return Op{Kind: OpUpdate, Path: path, Fields: fields}
}

func DeleteOp(path domain.DocumentPath) Op {
	return Op{Kind: OpDelete, Path: path}
}

// Store is the hierarchical document store every component talks to.
// Implementations return errors wrapping domain.ErrStoreUnavailable for
// transient failures and domain.ErrNotFound for absent documents; Delete and
// RecursiveDelete treat absent documents as success.
type Store interface {
	// Put creates or overwrites the document.
	Put(ctx context.Context, doc domain.DocumentPath, fields Fields) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, doc domain.DocumentPath, fields Fields) error
	// Add creates a document with a store generated key and returns the key.
	Add(ctx context.Context, coll domain.CollectionPath, fields Fields) (string, error)
	Get(ctx context.Context, doc domain.DocumentPath) (Document, error)
	// Delete reports whether a document was removed by this call.
	Delete(ctx context.Context, doc domain.DocumentPath) (bool, error)
	List(ctx context.Context, coll domain.CollectionPath, filters ...Filter) ([]Document, error)
	// Subscribe delivers the full matching result set now and after every
	// change until the subscription is closed or ctx is done.
	Subscribe(ctx context.Context, coll domain.CollectionPath, filters ...Filter) (*Subscription[[]Document], error)
	// BatchCommit applies ops atomically.
	BatchCommit(ctx context.Context, ops []Op) error
	// RecursiveDelete removes everything nested beneath doc, then doc.
	RecursiveDelete(ctx context.Context, doc domain.DocumentPath) error
	// Children lists the keys directly under coll, including keys whose
	// document is gone but which still have nested documents.
	Children(ctx context.Context, coll domain.CollectionPath) ([]string, error)
	Close(ctx context.Context) error
}
