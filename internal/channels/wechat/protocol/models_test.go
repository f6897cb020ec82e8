package protocol

import (
	"encoding/json"
	"testing"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain string", `"wxid_abc"`, "wxid_abc"},
		{"str wrapper", `{"str":"wxid_abc"}`, "wxid_abc"},
		{"string wrapper", `{"string":"wxid_abc"}`, "wxid_abc"},
		{"empty wrapper", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s FlexString
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatal(err)
			}
			if string(s) != tt.want {
				t.Errorf("got %q, want %q", s, tt.want)
			}
		})
	}
}

func TestFlexID_UnmarshalJSON(t *testing.T) {
	var id FlexID
	if err := json.Unmarshal([]byte(`8234729837492`), &id); err != nil {
		t.Fatal(err)
	}
	if string(id) != "8234729837492" {
		t.Errorf("numeric id = %q", id)
	}

	if err := json.Unmarshal([]byte(`"m-1"`), &id); err != nil {
		t.Fatal(err)
	}
	if string(id) != "m-1" {
		t.Errorf("string id = %q", id)
	}
}

func TestSyncMessage_ID(t *testing.T) {
	m := SyncMessage{MsgID: "old", NewMsgID: "new"}
	if m.ID() != "new" {
		t.Errorf("ID() = %q, want NewMsgId preferred", m.ID())
	}
	m.NewMsgID = ""
	if m.ID() != "old" {
		t.Errorf("ID() = %q, want MsgId fallback", m.ID())
	}
}

func TestSyncMessage_IsGroup(t *testing.T) {
	m := SyncMessage{FromUserName: "12345678@chatroom"}
	if !m.IsGroup() {
		t.Error("chatroom sender should be a group")
	}
	m.FromUserName = "wxid_abc"
	if m.IsGroup() {
		t.Error("plain wxid should not be a group")
	}
}

func TestExtractAddMsgs_FieldNamingConventions(t *testing.T) {
	entry := `{"MsgId":1,"FromUserName":"wxid_a","ToUserName":"wxid_b","Content":"hi","MsgType":1}`

	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"top-level AddMsgs", `{"AddMsgs":[` + entry + `]}`, 1},
		{"top-level addMsgs", `{"addMsgs":[` + entry + `]}`, 1},
		{"top-level add_msgs", `{"add_msgs":[` + entry + `]}`, 1},
		{"nested under Data", `{"Data":{"AddMsgs":[` + entry + `,` + entry + `]}}`, 2},
		{"nested under data", `{"data":{"add_msgs":[` + entry + `]}}`, 1},
		{"no entries", `{"Data":{}}`, 0},
		{"malformed", `{"AddMsgs":`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAddMsgs([]byte(tt.payload))
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
			if tt.want > 0 && string(got[0].FromUserName) != "wxid_a" {
				t.Errorf("FromUserName = %q", got[0].FromUserName)
			}
		})
	}
}

func TestSyncMessage_WrappedFields(t *testing.T) {
	payload := `{"AddMsgs":[{
		"MsgId": 42,
		"NewMsgId": "779",
		"FromUserName": {"str": "123@chatroom"},
		"ToUserName": {"str": "wxid_self"},
		"Content": {"str": "wxid_peer:\nhello"},
		"MsgType": 1,
		"CreateTime": 1700000000
	}]}`

	msgs := ExtractAddMsgs([]byte(payload))
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID() != "779" {
		t.Errorf("ID() = %q, want '779'", m.ID())
	}
	if !m.IsGroup() {
		t.Error("wrapped chatroom sender should be a group")
	}
	if string(m.Content) != "wxid_peer:\nhello" {
		t.Errorf("Content = %q", m.Content)
	}
}

func TestSyncMessage_HistoricFlag(t *testing.T) {
	for _, raw := range []string{
		`{"MsgId":1,"IsHistoric":true}`,
		`{"MsgId":1,"is_history":true}`,
	} {
		var m SyncMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			t.Fatal(err)
		}
		if !m.Historic {
			t.Errorf("Historic = false for %s", raw)
		}
	}
}
