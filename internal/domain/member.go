package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/lobby/internal/infrastructure/validate"
)

const (
	FieldNickname = "nickname"
	FieldJoinedAt = "joinedAt"

	maxNicknameLength = 32
)

var validateNickname = validate.Field("nickname",
	validate.Required(),
	validate.MaxLength(maxNicknameLength),
	validate.Printable(),
)

type Member struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"roomId"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

func NewNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	if err := validateNickname(nickname); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nickname, nil
}
