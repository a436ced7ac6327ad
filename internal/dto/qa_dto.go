package dto

import "docqa-be/pkg/stream"

// AskRequest is the body of the ask endpoints and websocket "ask" messages.
// DocumentID and DocumentIDs stay loosely typed; clients send numbers or
// numeric strings.
type AskRequest struct {
	Question    string        `json:"question" validate:"required_without=Category"`
	Category    string        `json:"category" validate:"omitempty,max=64"`
	Scope       string        `json:"scope" validate:"omitempty,oneof=all latest current ids"`
	DocumentID  interface{}   `json:"documentId"`
	DocumentIDs []interface{} `json:"documentIds"`
	TopK        int           `json:"topK" validate:"omitempty,min=1,max=20"`
}

type AskResponse struct {
	Answer  string          `json:"answer"`
	Sources []stream.Source `json:"sources"`
}

const (
	SocketMessageAsk    = "ask"
	SocketMessageCancel = "cancel"
)

// SocketMessage is an inbound websocket message. The ask fields are only
// read when Type is "ask".
type SocketMessage struct {
	Type string `json:"type"`
	AskRequest
}
