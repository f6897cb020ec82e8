package wechat

import (
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
)

func syncMessage(t *testing.T, raw string) *protocol.SyncMessage {
	t.Helper()
	var m protocol.SyncMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal sync message: %v", err)
	}
	return &m
}

func TestNewInboundMessageDirect(t *testing.T) {
	m := syncMessage(t, `{"MsgId":10,"NewMsgId":11,"FromUserName":{"str":"alice"},"ToUserName":{"str":"bot"},"Content":{"str":"hi"},"CreateTime":1760000000,"MsgType":1}`)
	msg := newInboundMessage(m)

	if msg.MsgID != "11" {
		t.Errorf("MsgID = %q, want NewMsgId preferred", msg.MsgID)
	}
	if msg.IsGroup {
		t.Error("direct message flagged as group")
	}
	if msg.SenderID != "alice" || msg.ChatID() != "alice" {
		t.Errorf("sender/chat = %q/%q, want alice/alice", msg.SenderID, msg.ChatID())
	}
	if msg.Timestamp.Unix() != 1760000000 {
		t.Errorf("Timestamp = %v, want CreateTime", msg.Timestamp)
	}
}

func TestNewInboundMessageGroup(t *testing.T) {
	m := syncMessage(t, `{"MsgId":20,"FromUserName":{"str":"team@chatroom"},"ToUserName":{"str":"bot"},"Content":{"str":"wxid_carol:\nmorning all"},"PushContent":"Carol : morning all","MsgType":1}`)
	msg := newInboundMessage(m)

	if !msg.IsGroup || msg.GroupID != "team@chatroom" {
		t.Fatalf("group detection failed: %+v", msg)
	}
	if msg.SenderID != "wxid_carol" {
		t.Errorf("SenderID = %q, want recovered from attribution prefix", msg.SenderID)
	}
	if msg.Text != "morning all" {
		t.Errorf("Text = %q, want prefix stripped", msg.Text)
	}
	if msg.SenderName != "Carol" {
		t.Errorf("SenderName = %q, want from push preview", msg.SenderName)
	}
	if msg.ChatID() != "team@chatroom" {
		t.Errorf("ChatID() = %q, want the group id", msg.ChatID())
	}
}

func TestNewInboundMessageGroupWithoutPrefix(t *testing.T) {
	m := syncMessage(t, `{"MsgId":30,"FromUserName":{"str":"team@chatroom"},"ToUserName":{"str":"bot"},"Content":{"str":"a system notice"},"MsgType":1}`)
	msg := newInboundMessage(m)

	if msg.SenderID != "team@chatroom" {
		t.Errorf("SenderID = %q, want group id kept when no attribution prefix", msg.SenderID)
	}
	if msg.Text != "a system notice" {
		t.Errorf("Text = %q, want untouched", msg.Text)
	}
}

func TestPushSenderName(t *testing.T) {
	tests := []struct {
		push string
		want string
	}{
		{"Carol : morning all", "Carol"},
		{"no separator here", ""},
		{"", ""},
		{" : leading", ""},
	}
	for _, tt := range tests {
		if got := pushSenderName(tt.push); got != tt.want {
			t.Errorf("pushSenderName(%q) = %q, want %q", tt.push, got, tt.want)
		}
	}
}
