package gesture

import "encoding/json"

// MessageType identifies a wire message kind.
type MessageType string

const (
	// MessageMove reports a new pointer position.
	MessageMove MessageType = "move"
	// MessageClick reports a click at the current pointer position.
	MessageClick MessageType = "click"
)

// Message is the envelope broadcast to connected clients. Coordinates are
// always quantised to four decimal places.
type Message struct {
	Type MessageType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

// NewMove builds a move message for the given pointer position.
func NewMove(x, y float64) Message {
	return Message{Type: MessageMove, X: Quantize(x), Y: Quantize(y)}
}

// NewClick builds a click message carrying the pointer position at the
// moment the click fired.
func NewClick(x, y float64) Message {
	return Message{Type: MessageClick, X: Quantize(x), Y: Quantize(y)}
}

// Encode renders the message as a single newline-free JSON object, the exact
// bytes written to each client connection.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
