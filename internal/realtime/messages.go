package realtime

import "encoding/json"

// Transport-local messages. They are sent to a single session and never
// travel through a group.

type stationConnected struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	StationID *int64 `json:"station_id"`
}

type userConnected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type pong struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type echo struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type errorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// reply builds the answer to one inbound frame: error for malformed JSON,
// pong for a ping, and an echo of anything else.
func reply(data []byte) any {
	if !json.Valid(data) {
		return errorReply{Type: "error", Message: "Invalid JSON"}
	}

	var probe struct {
		Type      string          `json:"type"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Type == "ping" {
		ts := probe.Timestamp
		if len(ts) == 0 {
			ts = json.RawMessage("null")
		}
		return pong{Type: "pong", Timestamp: ts}
	}
	return echo{Type: "echo", Message: json.RawMessage(data)}
}
