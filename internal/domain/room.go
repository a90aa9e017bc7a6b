package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/lobby/internal/infrastructure/validate"
)

const (
	FieldName         = "name"
	FieldCreatedAt    = "createdAt"
	FieldLastActivity = "lastActivity"

	maxRoomNameLength = 64
)

var validateRoomName = validate.Field("room name",
	validate.Required(),
	validate.MaxLength(maxRoomNameLength),
	validate.Excludes("/"),
	validate.NoneOf(".", ".."),
	validate.Printable(),
)

type Room struct {
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewRoomName trims and validates a caller chosen room name. The name is
// used verbatim as the room's storage key.
func NewRoomName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validateRoomName(name); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return name, nil
}

// IsStale reports whether the room's last activity is at or before
// now minus threshold.
func (r Room) IsStale(now time.Time, threshold time.Duration) bool {
	return !r.LastActivity.After(now.Add(-threshold))
}
