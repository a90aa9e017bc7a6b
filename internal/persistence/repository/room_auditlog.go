package repository

import (
	"context"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultRetention = 90 * 24 * time.Hour

type roomAuditLogRepository struct {
	db        *mongo.Database
	retention time.Duration
	tracer    trace.Tracer
}

// NewRoomAuditLogRepository stores audit entries in MongoDB. Entries expire
// after retention through a TTL index; zero means 90 days.
func NewRoomAuditLogRepository(database *mongo.Database, retention time.Duration) domain.RoomAuditRepository {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &roomAuditLogRepository{
		db:        database,
		retention: retention,
		tracer:    otel.GetTracerProvider().Tracer("lobby/repository"),
	}
}

func (r *roomAuditLogRepository) collection() *mongo.Collection {
	return r.db.Collection(db.RoomAuditLogsCollection)
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *roomAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	ctx, span := r.tracer.Start(ctx, "repo.DeleteOlderThan")
	defer span.End()

	filter := bson.M{
		"timestamp": bson.M{
			"$lt": before,
		},
	}

	res, err := r.collection().DeleteMany(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int64("audit.deleted", res.DeletedCount))
	}
	return finish(span, err)
}

func (r *roomAuditLogRepository) GetByEventType(ctx context.Context, eventType domain.RoomEventType, from time.Time, to time.Time) ([]domain.RoomAuditLog, error) {
	ctx, span := r.tracer.Start(ctx, "repo.GetByEventType")
	defer span.End()

	span.SetAttributes(attribute.String("audit.event_type", string(eventType)))

	filter := bson.M{
		"event_type": eventType,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	return r.find(ctx, span, filter, opts)
}

func (r *roomAuditLogRepository) GetByRoomID(ctx context.Context, tenant, roomID string, limit int) ([]domain.RoomAuditLog, error) {
	ctx, span := r.tracer.Start(ctx, "repo.GetByRoomID")
	defer span.End()

	span.SetAttributes(
		attribute.String("audit.tenant", tenant),
		attribute.String("audit.room_id", roomID),
	)

	filter := bson.M{"tenant": tenant, "room_id": roomID}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, span, filter, opts)
}

func (r *roomAuditLogRepository) find(ctx context.Context, span trace.Span, filter bson.M, opts *options.FindOptions) ([]domain.RoomAuditLog, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, finish(span, err)
	}
	defer cursor.Close(ctx)

	logs := make([]domain.RoomAuditLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, finish(span, err)
	}

	span.SetAttributes(attribute.Int("audit.count", len(logs)))
	return logs, finish(span, nil)
}

func (r *roomAuditLogRepository) Log(ctx context.Context, log *domain.RoomAuditLog) error {
	ctx, span := r.tracer.Start(ctx, "repo.Log")
	defer span.End()

	span.SetAttributes(
		attribute.String("audit.event_type", string(log.EventType)),
		attribute.String("audit.room_id", log.RoomID),
	)

	_, err := r.collection().InsertOne(ctx, log)
	return finish(span, err)
}

func (r *roomAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant", Value: 1},
				{Key: "room_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}
