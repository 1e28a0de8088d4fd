package ws

import (
	"encoding/json"

	"matchengine/series"
)

// InboundEnvelope is the generic envelope for client-to-server messages.
// The only inbound messages a client sends are subscribe and unsubscribe
// requests; everything else flows through the HTTP API.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw payload alongside the routing type.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// SubscribeMsg asks the hub to stream updates for one series.
type SubscribeMsg struct {
	Type     string `json:"type"`
	SeriesID string `json:"seriesId"`
}

// UnsubscribeMsg stops updates for one series.
type UnsubscribeMsg struct {
	Type     string `json:"type"`
	SeriesID string `json:"seriesId"`
}

// SeriesUpdateMsg is the only server-to-client push: a read-only snapshot
// sent when the HTTP API creates a series, ends a game (including the one
// that completes the series), or creates a rematch series. Swap2 actions,
// disconnects, reconnects and timeout forfeits do not send one. There are
// no client-driven game actions over the socket.
type SeriesUpdateMsg struct {
	Type   string          `json:"type"`
	Series *series.Series  `json:"series"`
}

// ErrorMsg is sent when a client message is malformed, lacks a seriesId, or
// has an unknown type. Series ids are not checked for existence.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
