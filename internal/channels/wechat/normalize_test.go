package wechat

import (
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantOK  bool
	}{
		{"plain", "hello", "hello", true},
		{"trims whitespace", "  hi there \n", "hi there", true},
		{"empty drops", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeContent(tt.content, 1)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("normalizeContent() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeAppMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantOK  bool
	}{
		{
			name:    "transfer drops",
			content: `<msg><appmsg><type>2000</type><title>transfer</title></appmsg></msg>`,
			wantOK:  false,
		},
		{
			name:    "quote with title",
			content: `<msg><appmsg><type>57</type><title>sounds good</title><refermsg><displayname>Bob</displayname><content>see you at 5</content></refermsg></appmsg></msg>`,
			want:    "[Quote: sounds good]\nsee you at 5",
			wantOK:  true,
		},
		{
			name:    "quote without title",
			content: `<msg><appmsg><type>57</type><refermsg><content>original text</content></refermsg></appmsg></msg>`,
			want:    "original text",
			wantOK:  true,
		},
		{
			name:    "link card joins parts",
			content: `<msg><appmsg><type>5</type><title>Weekly notes</title><url>https://example.com/notes</url><des>the latest update</des></appmsg></msg>`,
			want:    "Weekly notes\nhttps://example.com/notes\nthe latest update",
			wantOK:  true,
		},
		{
			name:    "link card skips empty fields",
			content: `<msg><appmsg><type>5</type><title>Weekly notes</title></appmsg></msg>`,
			want:    "Weekly notes",
			wantOK:  true,
		},
		{
			name:    "red packet placeholder",
			content: `<msg><appmsg><type>2001</type></appmsg></msg>`,
			want:    redPacketPlaceholder,
			wantOK:  true,
		},
		{
			name:    "unknown type falls back to title",
			content: `<msg><appmsg><type>33</type><title>Mini program</title></appmsg></msg>`,
			want:    "Mini program",
			wantOK:  true,
		},
		{
			name:    "malformed XML falls back to raw",
			content: `<msg><appmsg><type>`,
			want:    "<msg><appmsg><type>",
			wantOK:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeContent(tt.content, 49)
			if ok != tt.wantOK {
				t.Fatalf("normalizeContent() ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("normalizeContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeUnsupportedType(t *testing.T) {
	if _, ok := normalizeContent("voice data", 34); ok {
		t.Error("unsupported message type should not normalize")
	}
}

func TestSplitGroupSender(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantSender string
		wantBody   string
		wantOK     bool
	}{
		{"standard prefix", "wxid_abc123:\nhello all", "wxid_abc123", "hello all", true},
		{"no prefix", "just text", "", "just text", false},
		{"colon without newline", "note: remember", "", "note: remember", false},
		{"multiline body", "user99:\nline one\nline two", "user99", "line one\nline two", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, body, ok := splitGroupSender(tt.content)
			if ok != tt.wantOK || sender != tt.wantSender || body != tt.wantBody {
				t.Errorf("splitGroupSender(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.content, sender, body, ok, tt.wantSender, tt.wantBody, tt.wantOK)
			}
		})
	}
}

func TestQuoteTitleOnly(t *testing.T) {
	got, ok := normalizeContent(`<msg><appmsg><type>57</type><title>just a title</title></appmsg></msg>`, 49)
	if !ok {
		t.Fatal("quote with only a title should normalize")
	}
	if !strings.HasPrefix(got, "[Quote: ") {
		t.Errorf("got %q, want bracketed quote prefix", got)
	}
}
