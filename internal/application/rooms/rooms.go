package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

type Registry interface {
	// CreateRoom upserts the room: an existing room of that name is refreshed
	// and keeps its members and messages.
	CreateRoom(ctx context.Context, name string) (domain.Room, error)
	GetRoom(ctx context.Context, name string) (domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
	// ListRooms streams the full room set on every change until the
	// subscription is closed or ctx ends.
	ListRooms(ctx context.Context) (*store.Subscription[[]domain.Room], error)
}

type registry struct {
	store     store.Store
	tenant    domain.TenantPath
	publisher events.Publisher
	logger    logging.Logger
}

func NewRegistry(s store.Store, tenant domain.TenantPath, publisher events.Publisher, logger logging.Logger) Registry {
	return &registry{
		store:     s,
		tenant:    tenant,
		publisher: publisher,
		logger:    logger,
	}
}

func FromDocument(doc store.Document) domain.Room {
	name := doc.String(domain.FieldName)
	if name == "" {
		name = doc.Key()
	}
	return domain.Room{
		Name:         name,
		CreatedAt:    doc.Time(domain.FieldCreatedAt),
		LastActivity: doc.Time(domain.FieldLastActivity),
	}
}

func fromDocuments(docs []store.Document) []domain.Room {
	rooms := make([]domain.Room, 0, len(docs))
	for _, doc := range docs {
		rooms = append(rooms, FromDocument(doc))
	}
	return rooms
}

func (r *registry) CreateRoom(ctx context.Context, name string) (domain.Room, error) {
	name, err := domain.NewRoomName(name)
	if err != nil {
		return domain.Room{}, err
	}

	path := r.tenant.Room(name)
	if err := r.store.Put(ctx, path.DocumentPath, store.Fields{
		domain.FieldName:         name,
		domain.FieldCreatedAt:    store.ServerTimestamp,
		domain.FieldLastActivity: store.ServerTimestamp,
	}); err != nil {
		r.logger.Error(logging.Store, logging.ExternalService, "failed to create room", map[logging.ExtraKey]any{
			logging.Tenant:       r.tenant.ID(),
			logging.RoomID:       name,
			logging.ErrorMessage: err.Error(),
		})
		return domain.Room{}, fmt.Errorf("create room %s: %w", name, err)
	}

	room := domain.Room{Name: name}
	if doc, err := r.store.Get(ctx, path.DocumentPath); err == nil {
		room = FromDocument(doc)
	} else {
		now := time.Now().UTC()
		room.CreatedAt, room.LastActivity = now, now
	}

	if err := r.publisher.RoomCreated(ctx, r.tenant.ID(), room); err != nil {
		r.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room created", map[logging.ExtraKey]any{
			logging.RoomID:       name,
			logging.ErrorMessage: err.Error(),
		})
	}

	r.logger.Info(logging.Store, logging.ExternalService, "room created", map[logging.ExtraKey]any{
		logging.Tenant: r.tenant.ID(),
		logging.RoomID: name,
	})
	return room, nil
}

func (r *registry) GetRoom(ctx context.Context, name string) (domain.Room, error) {
	name, err := domain.ParseKey(name)
	if err != nil {
		return domain.Room{}, err
	}

	doc, err := r.store.Get(ctx, r.tenant.Room(name).DocumentPath)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, fmt.Errorf("get room %s: %w", name, domain.ErrRoomNotFound)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %s: %w", name, err)
	}
	return FromDocument(doc), nil
}

func (r *registry) List(ctx context.Context) ([]domain.Room, error) {
	docs, err := r.store.List(ctx, r.tenant.Rooms())
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return fromDocuments(docs), nil
}

func (r *registry) ListRooms(ctx context.Context) (*store.Subscription[[]domain.Room], error) {
	sub, err := r.store.Subscribe(ctx, r.tenant.Rooms())
	if err != nil {
		return nil, fmt.Errorf("subscribe rooms: %w", err)
	}
	return store.Map(sub, fromDocuments), nil
}
