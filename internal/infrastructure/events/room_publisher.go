package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/contracts"
	"github.com/hilthontt/lobby/internal/infrastructure/messaging"
)

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, msg contracts.AmqpMessage) error
}

type RoomPublisher struct {
	rabbitmq messagePublisher
	now      func() time.Time
}

func NewRoomPublisher(rabbitmq *messaging.RabbitMQ) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
		now:      time.Now,
	}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey, tenant string, payload messaging.RoomEventData) error {
	if payload.At.IsZero() {
		payload.At = p.now().UTC()
	}

	roomEventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		OwnerID: tenant,
		Data:    roomEventJSON,
	})
}

func (p *RoomPublisher) RoomCreated(ctx context.Context, tenant string, room domain.Room) error {
	return p.publish(ctx, contracts.EventRoomCreated, tenant, messaging.RoomEventData{
		RoomID: room.Name,
		Room:   &room,
	})
}

func (p *RoomPublisher) RoomDeleted(ctx context.Context, tenant, roomID, reason string) error {
	return p.publish(ctx, contracts.EventRoomDeleted, tenant, messaging.RoomEventData{
		RoomID: roomID,
		Reason: reason,
	})
}

func (p *RoomPublisher) MemberJoined(ctx context.Context, tenant string, member domain.Member) error {
	return p.publish(ctx, contracts.EventMemberJoined, tenant, messaging.RoomEventData{
		RoomID:   member.RoomID,
		Member:   &member,
		MemberID: member.ID,
	})
}

func (p *RoomPublisher) MemberLeft(ctx context.Context, tenant, roomID, memberID string, roomDeleted bool) error {
	return p.publish(ctx, contracts.EventMemberLeft, tenant, messaging.RoomEventData{
		RoomID:      roomID,
		MemberID:    memberID,
		RoomDeleted: roomDeleted,
	})
}

func (p *RoomPublisher) MessageSent(ctx context.Context, tenant string, message domain.Message) error {
	return p.publish(ctx, contracts.EventMessageSent, tenant, messaging.RoomEventData{
		RoomID:   message.RoomID,
		Message:  &message,
		MemberID: message.SenderID,
	})
}
