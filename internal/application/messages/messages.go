package messages

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hilthontt/lobby/internal/application/activity"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

type Service interface {
	// Send refreshes the room's activity, then appends the message. Sending
	// to a reclaimed room fails with domain.ErrRoomNotFound.
	Send(ctx context.Context, roomID, senderID, senderName, text string) (domain.Message, error)
	// Watch streams the room's messages ordered by timestamp.
	Watch(ctx context.Context, roomID string) (*store.Subscription[[]domain.Message], error)
}

type service struct {
	store     store.Store
	tenant    domain.TenantPath
	clock     activity.Clock
	publisher events.Publisher
	logger    logging.Logger
}

func NewService(s store.Store, tenant domain.TenantPath, clock activity.Clock, publisher events.Publisher, logger logging.Logger) Service {
	return &service{
		store:     s,
		tenant:    tenant,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
	}
}

func FromDocument(roomID string, doc store.Document) domain.Message {
	return domain.Message{
		ID:         doc.Key(),
		RoomID:     roomID,
		Text:       doc.String(domain.FieldText),
		SenderID:   doc.String(domain.FieldSenderID),
		SenderName: doc.String(domain.FieldSenderName),
		Timestamp:  doc.Time(domain.FieldTimestamp),
	}
}

// Sort orders messages by timestamp; messages not yet stamped come first.
func Sort(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func (s *service) Send(ctx context.Context, roomID, senderID, senderName, text string) (domain.Message, error) {
	roomID, err := domain.ParseKey(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	senderID, err = domain.ParseKey(senderID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("sender id: %w", err)
	}
	senderName, err = domain.NewNickname(senderName)
	if err != nil {
		return domain.Message{}, err
	}
	text, err = domain.NewMessageText(text)
	if err != nil {
		return domain.Message{}, err
	}

	if err := s.clock.Touch(ctx, roomID); err != nil {
		return domain.Message{}, err
	}

	room := s.tenant.Room(roomID)
	id, err := s.store.Add(ctx, room.Messages(), store.Fields{
		domain.FieldText:       text,
		domain.FieldSenderID:   senderID,
		domain.FieldSenderName: senderName,
		domain.FieldTimestamp:  store.ServerTimestamp,
	})
	if err != nil {
		s.logger.Error(logging.Store, logging.ExternalService, "failed to add message", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return domain.Message{}, fmt.Errorf("send to %s: %w", roomID, err)
	}

	msg := domain.Message{ID: id, RoomID: roomID, Text: text, SenderID: senderID, SenderName: senderName}
	if doc, err := s.store.Get(ctx, room.Message(id)); err == nil {
		msg = FromDocument(roomID, doc)
	} else {
		msg.Timestamp = time.Now().UTC()
	}

	if err := s.publisher.MessageSent(ctx, s.tenant.ID(), msg); err != nil {
		s.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish message sent", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}
	return msg, nil
}

func (s *service) Watch(ctx context.Context, roomID string) (*store.Subscription[[]domain.Message], error) {
	roomID, err := domain.ParseKey(roomID)
	if err != nil {
		return nil, err
	}

	sub, err := s.store.Subscribe(ctx, s.tenant.Room(roomID).Messages())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", roomID, err)
	}

	return store.Map(sub, func(docs []store.Document) []domain.Message {
		msgs := make([]domain.Message, 0, len(docs))
		for _, doc := range docs {
			msgs = append(msgs, FromDocument(roomID, doc))
		}
		Sort(msgs)
		return msgs
	}), nil
}
