// Package server defines the wire message shapes exchanged with clients and
// the server-side stamping step that normalizes inbound payloads.
package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// protocolVersion tags every relayed message with the wire revision it was
// produced under.
const protocolVersion = "v1"

// Error kinds attached to outbound error frames.
const (
	errKindOversize      = "oversize"
	errKindRateLimited   = "rateLimited"
	errKindAuthorization = "authorization"
	errKindNotFound      = "notFound"
	errKindPolicy        = "policy"
)

// inboundMessage is the set of client-supplied fields the relay will read.
// Everything else in a payload is discarded during stamping.
type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// ChatMessage is a relayed message after server-side stamping. The sender
// identity, timestamp, color, and unique id are always server-controlled; the
// payload text is opaque to the relay.
type ChatMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Name  string `json:"name,omitempty"`
	From  string `json:"from"`
	At    int64  `json:"at"`
	Color string `json:"color"`
	ID    string `json:"id"`
	Proto string `json:"proto"`
}

type historyBatch struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type systemNotice struct {
	Type string `json:"type"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

type welcomeNotice struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	At      int64  `json:"at"`
	IsOwner bool   `json:"isOwner"`
}

type userCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type rosterEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type rosterMessage struct {
	Type  string        `json:"type"`
	List  []rosterEntry `json:"list"`
	Count int           `json:"count"`
	At    int64         `json:"at"`
}

type errorMessage struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type roomDissolvedNotice struct {
	Type string `json:"type"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// stampMessage builds the broadcast form of a content message. Only the opaque
// payload text and the declared display name are taken from client input.
func stampMessage(from, name, text string) ChatMessage {
	return ChatMessage{
		Type:  "message",
		Text:  text,
		Name:  name,
		From:  from,
		At:    nowMillis(),
		Color: ColorFor(from),
		ID:    uuid.NewString(),
		Proto: protocolVersion,
	}
}

func newSystemNotice(text string) systemNotice {
	return systemNotice{Type: "system", Text: text, At: nowMillis()}
}

func newWelcomeNotice(text string, isOwner bool) welcomeNotice {
	return welcomeNotice{Type: "system", Text: text, At: nowMillis(), IsOwner: isOwner}
}

func newErrorMessage(kind, text string) errorMessage {
	return errorMessage{Type: "error", Kind: kind, Text: text}
}

func newMessageError(kind, text string) errorMessage {
	return errorMessage{Type: "messageError", Kind: kind, Text: text}
}

func newRoomDissolvedNotice() roomDissolvedNotice {
	return roomDissolvedNotice{Type: "roomDissolved", Text: "room dissolved by owner", At: nowMillis()}
}

// encodePayload marshals an outbound frame. The shapes above cannot fail to
// marshal; a nil return signals the caller to drop the frame.
func encodePayload(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding outbound payload: %v", err)
		return nil
	}
	return payload
}

// colorPalette holds the fixed set of display colors assigned to senders.
var colorPalette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E2",
	"#F8B88B",
	"#52B788",
	"#FF8FAB",
	"#6C5CE7",
	"#FDA7DF",
	"#A8DADC",
	"#E9C46A",
	"#F4A261",
}

// ColorFor derives a deterministic display color from a sender identity.
func ColorFor(id string) string {
	var hash int32
	for _, r := range id {
		hash = (hash << 5) - hash + int32(r)
	}

	idx := int64(hash)
	if idx < 0 {
		idx = -idx
	}
	return colorPalette[idx%int64(len(colorPalette))]
}
