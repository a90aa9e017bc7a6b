package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/contracts"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

// RoomConsumer turns room lifecycle events into audit log entries.
type RoomConsumer struct {
	rabbitmq *messaging.RabbitMQ
	audit    domain.RoomAuditRepository
	logger   logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, audit domain.RoomAuditRepository, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq: rabbitmq,
		audit:    audit,
		logger:   logger,
	}
}

func (c *RoomConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.RoomsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		return c.handle(ctx, msg.RoutingKey, msg.Body)
	})
}

func (c *RoomConsumer) handle(ctx context.Context, routingKey string, body []byte) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal message", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	var payload messaging.RoomEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal room event", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	entry, err := auditLogFor(routingKey, message.OwnerID, payload)
	if err != nil {
		return err
	}

	if err := c.audit.Log(ctx, entry); err != nil {
		c.logger.Error(logging.MongoDB, logging.Consume, "failed to write audit log", map[logging.ExtraKey]any{
			logging.Tenant:       message.OwnerID,
			logging.RoomID:       payload.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	c.logger.Debug(logging.RabbitMQ, logging.Consume, "room event recorded", map[logging.ExtraKey]any{
		logging.Tenant: message.OwnerID,
		logging.RoomID: payload.RoomID,
		"event":        routingKey,
	})
	return nil
}

func auditLogFor(routingKey, tenant string, payload messaging.RoomEventData) (*domain.RoomAuditLog, error) {
	switch routingKey {
	case contracts.EventRoomCreated:
		return domain.NewRoomCreatedLog(tenant, payload.RoomID, payload.At), nil
	case contracts.EventRoomDeleted:
		return domain.NewRoomDeletedLog(tenant, payload.RoomID, payload.Reason, payload.At), nil
	case contracts.EventMemberJoined:
		return domain.NewMemberJoinedLog(tenant, payload.RoomID, payload.MemberID, payload.At), nil
	case contracts.EventMemberLeft:
		return domain.NewMemberLeftLog(tenant, payload.RoomID, payload.MemberID, payload.RoomDeleted, payload.At), nil
	}
	return nil, fmt.Errorf("unexpected routing key %q", routingKey)
}
