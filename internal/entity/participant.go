package entity

// Participant binds a connection to a room and a symbol.
// A connection holds at most one binding at a time.
type Participant struct {
	ID       string `json:"id"`
	Symbol   Symbol `json:"symbol,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
}
