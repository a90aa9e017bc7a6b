package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/lobby/internal/application/activity"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

const maxBatchSize = 500

type LeaveResult struct {
	RoomDeleted bool `json:"roomDeleted"`
}

type Tracker interface {
	// Join records memberID in the room and refreshes the room's activity.
	// Re-joining overwrites joinedAt.
	Join(ctx context.Context, roomID, memberID, nickname string) (domain.Member, error)
	// Leave removes memberID. When nobody is left the room is deleted along
	// with its messages. Only the member delete can fail the call.
	Leave(ctx context.Context, roomID, memberID string) (LeaveResult, error)
	Members(ctx context.Context, roomID string) ([]domain.Member, error)
}

// LeaveRecorder counts rooms removed by their last member.
type LeaveRecorder interface {
	RoomDeletedOnLeave()
}

type tracker struct {
	store     store.Store
	tenant    domain.TenantPath
	publisher events.Publisher
	recorder  LeaveRecorder
	logger    logging.Logger
}

func NewTracker(s store.Store, tenant domain.TenantPath, publisher events.Publisher, recorder LeaveRecorder, logger logging.Logger) Tracker {
	return &tracker{
		store:     s,
		tenant:    tenant,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
	}
}

func FromDocument(roomID string, doc store.Document) domain.Member {
	return domain.Member{
		ID:       doc.Key(),
		RoomID:   roomID,
		Nickname: doc.String(domain.FieldNickname),
		JoinedAt: doc.Time(domain.FieldJoinedAt),
	}
}

func parseIDs(roomID, memberID string) (string, string, error) {
	room, err := domain.ParseKey(roomID)
	if err != nil {
		return "", "", fmt.Errorf("room id: %w", err)
	}
	member, err := domain.ParseKey(memberID)
	if err != nil {
		return "", "", fmt.Errorf("member id: %w", err)
	}
	return room, member, nil
}

func (t *tracker) Join(ctx context.Context, roomID, memberID, nickname string) (domain.Member, error) {
	roomID, memberID, err := parseIDs(roomID, memberID)
	if err != nil {
		return domain.Member{}, err
	}
	nickname, err = domain.NewNickname(nickname)
	if err != nil {
		return domain.Member{}, err
	}

	room := t.tenant.Room(roomID)
	// the touch fails the batch when the room is gone, so a join never
	// leaves a member behind without its room
	err = t.store.BatchCommit(ctx, []store.Op{
		activity.TouchOp(room),
		store.PutOp(room.Member(memberID), store.Fields{
			domain.FieldNickname: nickname,
			domain.FieldJoinedAt: store.ServerTimestamp,
		}),
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Member{}, fmt.Errorf("join %s: %w", roomID, domain.ErrRoomNotFound)
	}
	if err != nil {
		t.logger.Error(logging.Membership, logging.Join, "failed to join room", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.MemberID:     memberID,
			logging.ErrorMessage: err.Error(),
		})
		return domain.Member{}, fmt.Errorf("join %s: %w", roomID, err)
	}

	member := domain.Member{ID: memberID, RoomID: roomID, Nickname: nickname}
	if doc, err := t.store.Get(ctx, room.Member(memberID)); err == nil {
		member = FromDocument(roomID, doc)
	} else {
		member.JoinedAt = time.Now().UTC()
	}

	if err := t.publisher.MemberJoined(ctx, t.tenant.ID(), member); err != nil {
		t.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish member joined", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}

	t.logger.Info(logging.Membership, logging.Join, "member joined", map[logging.ExtraKey]any{
		logging.Tenant:   t.tenant.ID(),
		logging.RoomID:   roomID,
		logging.MemberID: memberID,
	})
	return member, nil
}

func (t *tracker) Leave(ctx context.Context, roomID, memberID string) (LeaveResult, error) {
	roomID, memberID, err := parseIDs(roomID, memberID)
	if err != nil {
		return LeaveResult{}, err
	}

	room := t.tenant.Room(roomID)
	if _, err := t.store.Delete(ctx, room.Member(memberID)); err != nil {
		return LeaveResult{}, fmt.Errorf("leave %s: %w", roomID, err)
	}

	deleted := t.deleteIfEmpty(ctx, room, memberID)

	if err := t.publisher.MemberLeft(ctx, t.tenant.ID(), roomID, memberID, deleted); err != nil {
		t.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish member left", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}

	return LeaveResult{RoomDeleted: deleted}, nil
}

// deleteIfEmpty is best effort. A join racing the emptiness check can lose
// its room; the janitor reclaims whatever is left behind. Only the leave
// whose delete removed the room document reports the deletion.
func (t *tracker) deleteIfEmpty(ctx context.Context, room domain.RoomPath, memberID string) bool {
	extra := map[logging.ExtraKey]any{
		logging.Tenant:   t.tenant.ID(),
		logging.RoomID:   room.Name(),
		logging.MemberID: memberID,
	}

	remaining, err := t.store.List(ctx, room.Members())
	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
		t.logger.Warn(logging.Membership, logging.Leave, "failed to count remaining members", extra)
		return false
	}
	if len(remaining) > 0 {
		return false
	}

	removed, err := t.store.Delete(ctx, room.DocumentPath)
	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
		t.logger.Warn(logging.Membership, logging.Leave, "failed to delete empty room", extra)
		return false
	}
	if !removed {
		return false
	}

	t.recorder.RoomDeletedOnLeave()
	t.logger.Info(logging.Membership, logging.Leave, "last member left, room deleted", extra)

	if err := t.publisher.RoomDeleted(ctx, t.tenant.ID(), room.Name(), domain.ReasonLastMemberLeft); err != nil {
		t.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room deleted", map[logging.ExtraKey]any{
			logging.RoomID:       room.Name(),
			logging.ErrorMessage: err.Error(),
		})
	}

	if err := t.deleteCollection(ctx, room.Messages()); err != nil {
		extra[logging.ErrorMessage] = err.Error()
		t.logger.Warn(logging.Membership, logging.Leave, "failed to delete room messages", extra)
	}
	return true
}

// deleteCollection removes the documents of coll in batches. The room
// document itself is left alone so a room recreated meanwhile survives.
func (t *tracker) deleteCollection(ctx context.Context, coll domain.CollectionPath) error {
	docs, err := t.store.List(ctx, coll)
	if err != nil {
		return err
	}

	for start := 0; start < len(docs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(docs))
		ops := make([]store.Op, 0, end-start)
		for _, doc := range docs[start:end] {
			ops = append(ops, store.DeleteOp(doc.Path))
		}
		if err := t.store.BatchCommit(ctx, ops); err != nil {
			return err
		}
	}
	return nil
}

func (t *tracker) Members(ctx context.Context, roomID string) ([]domain.Member, error) {
	roomID, err := domain.ParseKey(roomID)
	if err != nil {
		return nil, err
	}

	docs, err := t.store.List(ctx, t.tenant.Room(roomID).Members())
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", roomID, err)
	}

	members := make([]domain.Member, 0, len(docs))
	for _, doc := range docs {
		members = append(members, FromDocument(roomID, doc))
	}
	return members, nil
}

type nopRecorder struct{}

func (nopRecorder) RoomDeletedOnLeave() {}

// NopRecorder discards leave counts.
var NopRecorder LeaveRecorder = nopRecorder{}
