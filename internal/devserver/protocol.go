package devserver

import "encoding/json"

// Wire protocol message types (spec §6 "Dev-server wire protocol"): four
// server-to-client types plus one client-to-server acknowledgement, all
// transported as JSON text frames over the websocket connection a client
// opens at /__kona/hmr.
const (
	typeConnected  = "connected"
	typeUpdate     = "update"
	typeFullReload = "full-reload"
	typeError      = "error"
	typeAck        = "hmr-ack"
)

// connectedMessage is sent once, immediately after a client's websocket
// upgrade completes.
type connectedMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// update describes one patchable chunk; its Kind tells the client runtime
// knows whether to swap a <style> tag or re-evaluate a module registry
// entry; this bundler only ever produces "js" chunks today (see
// internal/emitter's always-null css manifest field), but the wire shape
// carries "css" too since the manifest format already reserves the slot.
type update struct {
	Kind      string   `json:"kind"`
	ChunkID   string   `json:"chunk-id"`
	ModuleIDs []string `json:"module-ids"`
	NewBytes  string   `json:"new-bytes"`
}

// updateMessage is broadcast when every changed chunk in a rebuild can be
// patched in place - no chunk was added, removed, or had its id change.
type updateMessage struct {
	Type      string   `json:"type"`
	Timestamp int64    `json:"timestamp"`
	Updates   []update `json:"updates"`
}

// fullReloadMessage is broadcast when a rebuild changed the chunk set
// itself (a chunk appeared, disappeared, or was renamed), which an
// in-place patch can't express.
type fullReloadMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// errorMessage is broadcast after a rebuild fails; Stack/File/Line/Column
// are omitted (not just empty) when the failing error carries no location,
// since a Resolution.NotFound has no line/column to report.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ackMessage is the one client-to-server message: sent after a client has
// finished applying an update, identified by the update's own timestamp.
type ackMessage struct {
	Type            string `json:"type"`
	UpdateTimestamp int64  `json:"update-timestamp"`
}

func marshalConnected(now int64) []byte {
	b, _ := json.Marshal(connectedMessage{Type: typeConnected, Timestamp: now})
	return b
}

func marshalUpdate(now int64, updates []update) []byte {
	b, _ := json.Marshal(updateMessage{Type: typeUpdate, Timestamp: now, Updates: updates})
	return b
}

func marshalFullReload(now int64) []byte {
	b, _ := json.Marshal(fullReloadMessage{Type: typeFullReload, Timestamp: now})
	return b
}

func marshalError(msg errorMessage) []byte {
	msg.Type = typeError
	b, _ := json.Marshal(msg)
	return b
}

// decodeAck parses a client frame, returning ok=false for anything that
// isn't a well-formed hmr-ack (the server only ever reads to detect
// disconnects - see transport.go - so a malformed frame is simply ignored
// rather than closing the connection).
func decodeAck(data []byte) (ackMessage, bool) {
	var msg ackMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != typeAck {
		return ackMessage{}, false
	}
	return msg, true
}
