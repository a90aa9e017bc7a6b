package rooms

type createRoomRequest struct {
	Name string `json:"name"`
}
