package members

type joinRequest struct {
	Nickname string `json:"nickname"`
}
