package domain

import (
	"strings"
)

const (
	artifactsSegment = "artifacts"
	roomsCollection  = "rooms"
	membersSegment   = "members"
	messagesSegment  = "messages"
)

// CollectionPath addresses a collection of documents, e.g.
// artifacts/{tenant}/public/data/rooms.
type CollectionPath struct {
	segments []string
}

// DocumentPath addresses a single document inside a collection.
type DocumentPath struct {
	segments []string
}

// TenantPath is the namespace root every other path hangs off.
type TenantPath struct {
	id string
}

// RoomPath is the document path of a room, with typed accessors for the
// collections it owns.
type RoomPath struct {
	DocumentPath
}

func Tenant(id string) TenantPath {
	return TenantPath{id: id}
}

func (t TenantPath) ID() string {
	return t.id
}

func (t TenantPath) Rooms() CollectionPath {
	return CollectionPath{segments: []string{artifactsSegment, t.id, "public", "data", roomsCollection}}
}

func (t TenantPath) Room(name string) RoomPath {
	return RoomPath{DocumentPath: t.Rooms().Doc(name)}
}

func (r RoomPath) Name() string {
	return r.Key()
}

func (r RoomPath) Members() CollectionPath {
	return r.Collection(membersSegment)
}

func (r RoomPath) Messages() CollectionPath {
	return r.Collection(messagesSegment)
}

func (r RoomPath) Member(id string) DocumentPath {
	return r.Members().Doc(id)
}

func (r RoomPath) Message(id string) DocumentPath {
	return r.Messages().Doc(id)
}

// Doc returns the document with the given key inside c.
func (c CollectionPath) Doc(key string) DocumentPath {
	segments := make([]string, len(c.segments), len(c.segments)+1)
	copy(segments, c.segments)
	return DocumentPath{segments: append(segments, key)}
}

func (c CollectionPath) String() string {
	return strings.Join(c.segments, "/")
}

func (c CollectionPath) IsZero() bool {
	return len(c.segments) == 0
}

// Collection returns the sub-collection name nested under d.
func (d DocumentPath) Collection(name string) CollectionPath {
	segments := make([]string, len(d.segments), len(d.segments)+1)
	copy(segments, d.segments)
	return CollectionPath{segments: append(segments, name)}
}

func (d DocumentPath) Parent() CollectionPath {
	if len(d.segments) == 0 {
		return CollectionPath{}
	}
	return CollectionPath{segments: d.segments[:len(d.segments)-1]}
}

func (d DocumentPath) Key() string {
	if len(d.segments) == 0 {
		return ""
	}
	return d.segments[len(d.segments)-1]
}

func (d DocumentPath) String() string {
	return strings.Join(d.segments, "/")
}

func (d DocumentPath) IsZero() bool {
	return len(d.segments) == 0
}

// Contains reports whether other is d itself or nested anywhere beneath it.
func (d DocumentPath) Contains(other string) bool {
	self := d.String()
	return other == self || strings.HasPrefix(other, self+"/")
}

// ParseKey trims and validates a caller supplied document key.
func ParseKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") {
		return "", ErrInvalidKey
	}
	return key, nil
}
