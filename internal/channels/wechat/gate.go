package wechat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wxbridge/internal/channels"
	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store"
)

// builtinBlockedSenders are system accounts that never carry user traffic.
var builtinBlockedSenders = map[string]struct{}{
	"weixin":      {},
	"filehelper":  {},
	"fmessage":    {},
	"floatbottle": {},
	"medianote":   {},
	"newsapp":     {},
	"tmessage":    {},
	"qmessage":    {},
	"qqmail":      {},
}

// officialAccountPrefix marks official/broadcast accounts.
const officialAccountPrefix = "gh_"

// mentionSpacer is the invisible separator the client inserts after an
// @mention.
const mentionSpacer = " "

// atEveryoneVariants are broadcast mention markers in the locales the
// gateway emits. A message consisting solely of one of these is never
// addressed to the bot.
var atEveryoneVariants = []string{
	"@所有人",
	"@全体成员",
	"@全體成員",
	"@everyone",
	"@all",
}

// pairingNoticeDebounce limits how often one sender is told their pairing
// code.
const pairingNoticeDebounce = time.Minute

// gateVerdict is the outcome of a passed message: the cleaned text to
// dispatch and whether this is the account owner talking to themselves
// (which exempts rate limiting).
type gateVerdict struct {
	Text     string
	SelfChat bool
}

// messageGate runs the ordered filter chain over normalized inbound
// messages. Stages short-circuit: the first stage that rejects decides the
// drop reason. Safe for concurrent use.
type messageGate struct {
	rates   *rateState
	pairing store.PairingStore
	// notify delivers gate-originated replies (pairing instructions)
	// straight back to the chat, bypassing the responder.
	notify func(ctx context.Context, chatID, text string)
	log    *slog.Logger

	mu         sync.Mutex
	lastNotice map[string]time.Time
	now        func() time.Time
}

func newMessageGate(rates *rateState, pairing store.PairingStore, notify func(ctx context.Context, chatID, text string), log *slog.Logger) *messageGate {
	if log == nil {
		log = slog.Default()
	}
	return &messageGate{
		rates:      rates,
		pairing:    pairing,
		notify:     notify,
		log:        log,
		lastNotice: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Evaluate runs every stage in order. It returns a nil verdict with the
// drop reason when any stage rejects; reasons feed the debug drop log and
// are never surfaced to the sender.
func (g *messageGate) Evaluate(ctx context.Context, acc config.ResolvedAccount, msg *inboundMessage, text string) (*gateVerdict, string) {
	if msg.MsgType != protocol.MsgTypeText && msg.MsgType != protocol.MsgTypeApp {
		return nil, fmt.Sprintf("unsupported message type %d", msg.MsgType)
	}

	if reason := blockedSenderReason(acc, msg.SenderID); reason != "" {
		return nil, reason
	}

	selfChat := false
	isSelf := acc.Wxid != "" && msg.SenderID == acc.Wxid
	if isSelf {
		verdict, reason := evaluateSelfMessage(acc, msg, text)
		if verdict == nil {
			return nil, reason
		}
		text = verdict.Text
		selfChat = verdict.SelfChat
	} else if msg.IsGroup {
		cleaned, addressed, reason := evaluateGroupMention(acc, msg, text)
		if !addressed {
			return nil, reason
		}
		attribution := msg.SenderName
		if attribution == "" {
			attribution = msg.SenderID
		}
		text = attribution + ": " + cleaned
	}

	// Accounts are re-resolved per operation; keep the rate limits in
	// step with the current config instead of the construction-time
	// snapshot.
	g.rates.SetLimits(time.Duration(acc.CooldownMs)*time.Millisecond, acc.MaxPerWindow)
	if !selfChat && !g.rates.Allow(msg.ChatID()) {
		return nil, "rate limited"
	}

	// The account owner is implicitly trusted; access tiers apply to
	// everyone else.
	if !isSelf {
		if reason := g.checkAccessPolicy(ctx, acc, msg); reason != "" {
			return nil, reason
		}
	}

	return &gateVerdict{Text: text, SelfChat: selfChat}, ""
}

// blockedSenderReason rejects empty, system, official-account, and
// configured-blocklist senders.
func blockedSenderReason(acc config.ResolvedAccount, senderID string) string {
	if senderID == "" {
		return "empty sender id"
	}
	lower := strings.ToLower(senderID)
	if _, blocked := builtinBlockedSenders[lower]; blocked {
		return "system account"
	}
	if strings.HasPrefix(lower, officialAccountPrefix) {
		return "official account"
	}
	if channels.MatchAllowList(acc.BlockFrom, senderID) {
		return "sender blocklisted"
	}
	return ""
}

// evaluateSelfMessage handles messages the account sent itself. Genuine
// self-chats (the owner messaging their own id) pass unmodified; self-sent
// messages to other chats need a trigger keyword. Both branches reject
// text carrying the bot's reply suffix so re-ingested replies never loop.
func evaluateSelfMessage(acc config.ResolvedAccount, msg *inboundMessage, text string) (*gateVerdict, string) {
	if acc.AISuffix != "" && strings.HasSuffix(strings.TrimSpace(text), acc.AISuffix) {
		return nil, "own reply echo"
	}

	if !msg.IsGroup && msg.SelfTargetID == acc.Wxid {
		return &gateVerdict{Text: text, SelfChat: true}, ""
	}

	if stripped, ok := stripTriggerKeyword(text, acc.TriggerKeywords); ok {
		return &gateVerdict{Text: stripped}, ""
	}
	return nil, "self message without trigger keyword"
}

// evaluateGroupMention decides whether a group message addresses the bot
// and returns the text with the matched mention or keyword removed.
func evaluateGroupMention(acc config.ResolvedAccount, msg *inboundMessage, text string) (cleaned string, addressed bool, reason string) {
	trimmed := strings.TrimSpace(text)
	for _, variant := range atEveryoneVariants {
		if strings.EqualFold(trimmed, variant) {
			return "", false, "broadcast mention"
		}
	}

	names := make([]string, 0, len(acc.Nicknames)+1)
	if acc.Wxid != "" {
		names = append(names, acc.Wxid)
	}
	names = append(names, acc.Nicknames...)

	for _, name := range names {
		if name == "" {
			continue
		}
		if stripped, ok := stripMention(text, name); ok {
			return stripped, true, ""
		}
	}

	if channels.MatchAllowList(acc.OpenGroups, msg.GroupID) {
		if stripped, ok := stripTriggerKeyword(text, acc.TriggerKeywords); ok {
			return stripped, true, ""
		}
	}
	return "", false, "not addressed to bot"
}

// stripMention removes the first "@name" mention (case-insensitive,
// followed by a spacer, whitespace, or end of text) and reports whether
// one was found.
func stripMention(text, name string) (string, bool) {
	needle := "@" + strings.ToLower(name)
	lower := strings.ToLower(text)

	for from := 0; ; {
		idx := strings.Index(lower[from:], needle)
		if idx < 0 {
			return "", false
		}
		idx += from
		end := idx + len(needle)
		rest := text[end:]
		switch {
		case rest == "":
		case strings.HasPrefix(rest, mentionSpacer):
			rest = rest[len(mentionSpacer):]
		case rest[0] == ' ' || rest[0] == '\n' || rest[0] == '\t':
			rest = rest[1:]
		default:
			// Ran into a longer name ("@bottle" while looking for
			// "@bot"); keep scanning for a standalone mention later
			// in the text.
			from = end
			continue
		}
		return strings.TrimSpace(text[:idx] + rest), true
	}
}

// stripTriggerKeyword removes a leading configured trigger keyword.
func stripTriggerKeyword(text string, keywords []string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if len(trimmed) >= len(kw) && strings.EqualFold(trimmed[:len(kw)], kw) {
			return strings.TrimSpace(trimmed[len(kw):]), true
		}
	}
	return "", false
}

// checkAccessPolicy applies the per-topology access tier. Allowlist and
// pairing consult the union of the configured list and the persisted
// pairing store; pairing additionally replies with enrollment
// instructions, debounced per sender.
func (g *messageGate) checkAccessPolicy(ctx context.Context, acc config.ResolvedAccount, msg *inboundMessage) string {
	if msg.IsGroup {
		switch channels.GroupPolicy(acc.GroupPolicy) {
		case channels.GroupPolicyOpen:
			return ""
		case channels.GroupPolicyDisabled:
			return "group messages disabled"
		default: // allowlist
			if channels.MatchAllowList(acc.GroupAllowFrom, msg.SenderID) {
				return ""
			}
			if g.pairing != nil && g.pairing.IsPaired(msg.SenderID, channelName) {
				return ""
			}
			return "group sender not in allowlist"
		}
	}

	switch channels.DMPolicy(acc.DMPolicy) {
	case channels.DMPolicyOpen:
		return ""
	case channels.DMPolicyAllowlist:
		if channels.MatchAllowList(acc.AllowFrom, msg.SenderID) {
			return ""
		}
		if g.pairing != nil && g.pairing.IsPaired(msg.SenderID, channelName) {
			return ""
		}
		return "sender not in allowlist"
	default: // pairing
		if channels.MatchAllowList(acc.AllowFrom, msg.SenderID) {
			return ""
		}
		if g.pairing != nil && g.pairing.IsPaired(msg.SenderID, channelName) {
			return ""
		}
		g.sendPairingNotice(ctx, msg)
		return "sender not paired"
	}
}

// sendPairingNotice replies with the sender's pairing code, at most once
// per debounce interval per sender.
func (g *messageGate) sendPairingNotice(ctx context.Context, msg *inboundMessage) {
	if g.pairing == nil || g.notify == nil {
		return
	}

	g.mu.Lock()
	now := g.now()
	if last, ok := g.lastNotice[msg.SenderID]; ok && now.Sub(last) < pairingNoticeDebounce {
		g.mu.Unlock()
		return
	}
	g.lastNotice[msg.SenderID] = now
	g.mu.Unlock()

	code, err := g.pairing.RequestPairing(msg.SenderID, channelName, msg.ChatID())
	if err != nil {
		g.log.Warn("pairing request failed", "sender", msg.SenderID, "error", err)
		return
	}
	g.notify(ctx, msg.ChatID(),
		fmt.Sprintf("Pairing required. Ask the bot owner to run: wxbridge pairing approve %s", code))
}
