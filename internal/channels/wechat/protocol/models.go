package protocol

import (
	"encoding/json"
	"strings"
)

// Message type codes used by the gateway.
const (
	MsgTypeText = 1
	MsgTypeApp  = 49
)

// Envelope is the gateway's standard response wrapper.
// A call succeeded only when the HTTP status is 2xx, Code is 0 and
// Success is true.
type Envelope struct {
	Code    int             `json:"Code"`
	Success bool            `json:"Success"`
	Message string          `json:"Message,omitempty"`
	Data    json.RawMessage `json:"Data,omitempty"`
}

// FlexString accepts a plain JSON string as well as the gateway's wrapped
// forms {"str": "..."} and {"string": "..."}.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = FlexString(plain)
		return nil
	}
	var wrapped struct {
		Str    *string `json:"str"`
		String *string `json:"string"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	switch {
	case wrapped.Str != nil:
		*s = FlexString(*wrapped.Str)
	case wrapped.String != nil:
		*s = FlexString(*wrapped.String)
	default:
		*s = ""
	}
	return nil
}

// FlexID accepts a numeric or string message identifier and keeps it as a
// string.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexID(s)
	return nil
}

// SyncMessage is one message entry as delivered by the sync/callback payload.
type SyncMessage struct {
	MsgID        FlexID     `json:"MsgId"`
	NewMsgID     FlexID     `json:"NewMsgId"`
	FromUserName FlexString `json:"FromUserName"`
	ToUserName   FlexString `json:"ToUserName"`
	Content      FlexString `json:"Content"`
	PushContent  string     `json:"PushContent,omitempty"`
	CreateTime   int64      `json:"CreateTime"`
	MsgType      int        `json:"MsgType"`
	Historic     bool       `json:"-"` // flagged as historical replay, never dispatched
}

func (m *SyncMessage) UnmarshalJSON(data []byte) error {
	type alias SyncMessage
	aux := struct {
		*alias
		IsHistoric bool `json:"IsHistoric"`
		IsHistory  bool `json:"is_history"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Historic = aux.IsHistoric || aux.IsHistory
	return nil
}

// ID returns the best available message identifier, preferring NewMsgId.
func (m *SyncMessage) ID() string {
	if m.NewMsgID != "" {
		return string(m.NewMsgID)
	}
	return string(m.MsgID)
}

// IsGroup reports whether the message originates from a group chat.
func (m *SyncMessage) IsGroup() bool {
	return strings.HasSuffix(string(m.FromUserName), "@chatroom")
}

// ExtractAddMsgs pulls the message entry list out of a sync payload,
// tolerating the field-naming conventions of different gateway builds
// (AddMsgs / addMsgs / add_msgs, at the top level or nested one level under
// Data/data).
func ExtractAddMsgs(payload []byte) []SyncMessage {
	return extractAddMsgs(payload, 0)
}

func extractAddMsgs(payload []byte, depth int) []SyncMessage {
	if depth > 2 || len(payload) == 0 {
		return nil
	}

	var probe struct {
		AddMsgs   []SyncMessage   `json:"AddMsgs"`
		AddMsgsLC []SyncMessage   `json:"addMsgs"`
		AddMsgsSC []SyncMessage   `json:"add_msgs"`
		Data      json.RawMessage `json:"Data"`
		DataLC    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil
	}

	switch {
	case len(probe.AddMsgs) > 0:
		return probe.AddMsgs
	case len(probe.AddMsgsLC) > 0:
		return probe.AddMsgsLC
	case len(probe.AddMsgsSC) > 0:
		return probe.AddMsgsSC
	}

	if msgs := extractAddMsgs(probe.Data, depth+1); msgs != nil {
		return msgs
	}
	return extractAddMsgs(probe.DataLC, depth+1)
}
