package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hilthontt/lobby/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorRecorder is notified of every failed store operation.
type ErrorRecorder interface {
	StoreError(op string)
}

type MongoOptions struct {
	Collection string
	Tracer     trace.Tracer
	Errors     ErrorRecorder
}

// Mongo keeps every document of the hierarchy in a single collection:
//
//	{_id: "<full path>", parent: "<collection path>", key: "<key>", fields: {...}}
//
// Server timestamps are resolved by the database ($$NOW). Subscriptions use
// change streams and therefore need a replica set.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	tracer trace.Tracer
	errors ErrorRecorder
}

type mongoDocument struct {
	ID     string `bson:"_id"`
	Parent string `bson:"parent"`
	Key    string `bson:"key"`
	Fields bson.M `bson:"fields"`
}

func NewMongo(database *mongo.Database, opts MongoOptions) *Mongo {
	if opts.Collection == "" {
		opts.Collection = "documents"
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.GetTracerProvider().Tracer("lobby/store")
	}
	return &Mongo{
		client: database.Client(),
		coll:   database.Collection(opts.Collection),
		tracer: opts.Tracer,
		errors: opts.Errors,
	}
}

// EnsureIndexes creates the parent index used by List and Subscribe.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "key", Value: 1}},
	})
	return err
}

func (s *Mongo) fail(span trace.Span, op string, err error, msg string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetStatus(codes.Error, "document not found")
		return domain.ErrNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	if s.errors != nil {
		s.errors.StoreError(op)
	}
	return domain.Unavailable(op, err)
}

// fieldsExpr renders fields for an aggregation pipeline update. User values
// are wrapped in $literal so strings starting with "$" are not read as
// field paths.
func fieldsExpr(fields Fields) bson.M {
	expr := make(bson.M, len(fields))
	for k, v := range fields {
		expr[k] = valueExpr(v)
	}
	return expr
}

func valueExpr(v any) any {
	if v == ServerTimestamp {
		return "$$NOW"
	}
	return bson.M{"$literal": v}
}

func (s *Mongo) put(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	replacement := bson.M{
		"_id":    bson.M{"$literal": doc.String()},
		"parent": bson.M{"$literal": doc.Parent().String()},
		"key":    bson.M{"$literal": doc.Key()},
		"fields": fieldsExpr(fields),
	}
	pipeline := mongo.Pipeline{{{Key: "$replaceWith", Value: replacement}}}

	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": doc.String()}, pipeline, options.Update().SetUpsert(true))
	return err
}

func (s *Mongo) update(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	set := bson.M{}
	for k, v := range fields {
		set["fields."+k] = valueExpr(v)
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": doc.String()}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Mongo) Put(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	ctx, span := s.tracer.Start(ctx, "mongoStore.Put")
	defer span.End()

	span.SetAttributes(attribute.String("document.path", doc.String()))

	if err := s.put(ctx, doc, fields); err != nil {
		return s.fail(span, "put", err, "failed to put document")
	}

	span.SetStatus(codes.Ok, "document written")
	return nil
}

func (s *Mongo) Update(ctx context.Context, doc domain.DocumentPath, fields Fields) error {
	ctx, span := s.tracer.Start(ctx, "mongoStore.Update")
	defer span.End()

	span.SetAttributes(attribute.String("document.path", doc.String()))

	if err := s.update(ctx, doc, fields); err != nil {
		return s.fail(span, "update", err, "failed to update document")
	}

	span.SetStatus(codes.Ok, "document updated")
	return nil
}

func (s *Mongo) Add(ctx context.Context, coll domain.CollectionPath, fields Fields) (string, error) {
	key := uuid.NewString()
	if err := s.Put(ctx, coll.Doc(key), fields); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Mongo) Get(ctx context.Context, doc domain.DocumentPath) (Document, error) {
	ctx, span := s.tracer.Start(ctx, "mongoStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("document.path", doc.String()))

	var raw mongoDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": doc.String()}).Decode(&raw); err != nil {
		return Document{}, s.fail(span, "get", err, "failed to get document")
	}

	span.SetStatus(codes.Ok, "document found")
	return Document{Path: doc, Fields: fromBSON(raw.Fields)}, nil
}

func (s *Mongo) Delete(ctx context.Context, doc domain.DocumentPath) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "mongoStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("document.path", doc.String()))

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": doc.String()})
	if err != nil {
		return false, s.fail(span, "delete", err, "failed to delete document")
	}

	span.SetAttributes(attribute.Bool("document.existed", res.DeletedCount > 0))
	span.SetStatus(codes.Ok, "document deleted")
	return res.DeletedCount > 0, nil
}

func listFilter(coll domain.CollectionPath, filters []Filter) (bson.M, error) {
	filter := bson.M{"parent": coll.String()}
	for _, f := range filters {
		op, ok := mongoOperators[f.Op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidInput, f.Op)
		}
		field := "fields." + f.Field
		cond, _ := filter[field].(bson.M)
		if cond == nil {
			cond = bson.M{}
		}
		cond[op] = f.Value
		filter[field] = cond
	}
	return filter, nil
}

var mongoOperators = map[Operator]string{
	Equal:          "$eq",
	Less:           "$lt",
	LessOrEqual:    "$lte",
	Greater:        "$gt",
	GreaterOrEqual: "$gte",
}

func (s *Mongo) list(ctx context.Context, coll domain.CollectionPath, filters []Filter) ([]Document, error) {
	filter, err := listFilter(coll, filters)
	if err != nil {
		return nil, err
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raws []mongoDocument
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, Document{Path: coll.Doc(raw.Key), Fields: fromBSON(raw.Fields)})
	}
	return docs, nil
}

func (s *Mongo) List(ctx context.Context, coll domain.CollectionPath, filters ...Filter) ([]Document, error) {
	ctx, span := s.tracer.Start(ctx, "mongoStore.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection.path", coll.String()),
		attribute.Int("filters.count", len(filters)),
	)

	docs, err := s.list(ctx, coll, filters)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return nil, s.fail(span, "list", err, "failed to list documents")
	}

	span.SetAttributes(attribute.Int("documents.count", len(docs)))
	span.SetStatus(codes.Ok, "documents listed")
	return docs, nil
}

func (s *Mongo) Subscribe(ctx context.Context, coll domain.CollectionPath, filters ...Filter) (*Subscription[[]Document], error) {
	if _, err := listFilter(coll, filters); err != nil {
		return nil, err
	}

	match := bson.D{{Key: "$match", Value: bson.M{
		"documentKey._id": bson.M{"$regex": "^" + regexp.QuoteMeta(coll.String()) + "/[^/]+$"},
	}}}

	// open the stream before the first read so no change between the two is lost
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{match})
	if err != nil {
		if s.errors != nil {
			s.errors.StoreError("subscribe")
		}
		return nil, domain.Unavailable("subscribe", err)
	}

	return NewSubscription(ctx, func(ctx context.Context, emit func([]Document) bool) error {
		defer stream.Close(context.Background())

		for {
			docs, err := s.list(ctx, coll, filters)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return domain.Unavailable("subscribe", err)
			}
			if !emit(docs) {
				return nil
			}

			if !stream.Next(ctx) {
				if ctx.Err() != nil {
					return nil
				}
				return domain.Unavailable("subscribe", stream.Err())
			}
			// coalesce bursts into one re-read
			for stream.RemainingBatchLength() > 0 && stream.Next(ctx) {
			}
		}
	}), nil
}

func (s *Mongo) apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpPut:
		return s.put(ctx, op.Path, op.Fields)
	case OpUpdate:
		return s.update(ctx, op.Path, op.Fields)
	case OpDelete:
		_, err := s.coll.DeleteOne(ctx, bson.M{"_id": op.Path.String()})
		return err
	}
	return fmt.Errorf("%w: unknown op kind %d", domain.ErrInvalidInput, op.Kind)
}

func (s *Mongo) BatchCommit(ctx context.Context, ops []Op) error {
	ctx, span := s.tracer.Start(ctx, "mongoStore.BatchCommit")
	defer span.End()

	span.SetAttributes(attribute.Int("batch.size", len(ops)))

	session, err := s.client.StartSession()
	if err != nil {
		return s.fail(span, "batch commit", err, "failed to start session")
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range ops {
			if err := s.apply(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return s.fail(span, "batch commit", err, "failed to commit batch")
	}

	span.SetStatus(codes.Ok, "batch committed")
	return nil
}

func (s *Mongo) RecursiveDelete(ctx context.Context, doc domain.DocumentPath) error {
	ctx, span := s.tracer.Start(ctx, "mongoStore.RecursiveDelete")
	defer span.End()

	span.SetAttributes(attribute.String("document.path", doc.String()))

	// descendants first: if this fails the parent survives and is found
	// again by the next sweep
	children, err := s.coll.DeleteMany(ctx, bson.M{
		"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(doc.String()) + "/"},
	})
	if err != nil {
		return s.fail(span, "recursive delete", err, "failed to delete descendants")
	}

	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": doc.String()}); err != nil {
		return s.fail(span, "recursive delete", err, "failed to delete document")
	}

	span.SetAttributes(attribute.Int64("descendants.deleted", children.DeletedCount))
	span.SetStatus(codes.Ok, "subtree deleted")
	return nil
}

func (s *Mongo) Children(ctx context.Context, coll domain.CollectionPath) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "mongoStore.Children")
	defer span.End()

	span.SetAttributes(attribute.String("collection.path", coll.String()))

	prefix := coll.String() + "/"
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}}},
		{{Key: "$project", Value: bson.M{"k": bson.M{"$arrayElemAt": bson.A{
			bson.M{"$split": bson.A{
				bson.M{"$substrCP": bson.A{"$_id", utf8.RuneCountInString(prefix), 1 << 20}},
				"/",
			}},
			0,
		}}}}},
		{{Key: "$group", Value: bson.M{"_id": "$k"}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, s.fail(span, "children", err, "failed to aggregate children")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, s.fail(span, "children", err, "failed to decode children")
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}

	span.SetAttributes(attribute.Int("children.count", len(keys)))
	span.SetStatus(codes.Ok, "children listed")
	return keys, nil
}

func (s *Mongo) Close(ctx context.Context) error {
	return nil
}

func fromBSON(m bson.M) Fields {
	fields := make(Fields, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case primitive.DateTime:
			fields[k] = tv.Time().UTC()
		case time.Time:
			fields[k] = tv.UTC()
		default:
			fields[k] = v
		}
	}
	return fields
}
