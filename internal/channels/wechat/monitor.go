package wechat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/wxbridge/internal/bus"
	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store"
)

const (
	// pollBaseInterval and pollJitter shape the catch-up sync schedule:
	// base plus a uniform random jitter per cycle.
	pollBaseInterval = 8 * time.Minute
	pollJitter       = 7 * time.Minute

	heartbeatInterval = 25 * time.Second
)

// accountMonitor owns one account's full inbound pipeline: the gateway
// client, the dedup registry and rate state, the gate, and the recurring
// poll and heartbeat tasks. Both the webhook route and the poll loop feed
// processSyncMessages, so a message id seen on one path is rejected on
// the other. All per-account state dies with the monitor.
type accountMonitor struct {
	accountID string
	cfg       *config.WeChatConfig
	bus       *bus.MessageBus
	client    *protocol.Client
	dedup     *dedupRegistry
	rates     *rateState
	gate      *messageGate
	shaper    *deliveryShaper
	log       *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// newAccountMonitor resolves the account and builds its pipeline. Fails
// with a configuration error when the resolved account has no usable
// gateway credentials.
func newAccountMonitor(accountID string, cfg *config.WeChatConfig, msgBus *bus.MessageBus, pairing store.PairingStore, log *slog.Logger) (*accountMonitor, error) {
	acc := cfg.ResolveAccount(accountID)
	client, err := protocol.NewClient(acc.ServerURL, acc.AuthToken, acc.Wxid)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", accountID, err)
	}

	log = log.With("account", acc.AccountID)

	m := &accountMonitor{
		accountID: acc.AccountID,
		cfg:       cfg,
		bus:       msgBus,
		client:    client,
		dedup:     newDedupRegistry(dedupCapacity),
		rates:     newRateState(time.Duration(acc.CooldownMs)*time.Millisecond, acc.MaxPerWindow),
		log:       log,
	}
	m.gate = newMessageGate(m.rates, pairing, m.notifyChat, log)
	m.shaper = newDeliveryShaper(func(ctx context.Context, chatID, text string) error {
		return m.client.SendText(ctx, chatID, text, nil)
	})
	return m, nil
}

// resolve returns a fresh policy snapshot. Credentials were validated at
// construction; policy fields may change between operations.
func (m *accountMonitor) resolve() config.ResolvedAccount {
	return m.cfg.ResolveAccount(m.accountID)
}

// start registers the gateway callback and launches the poll and
// heartbeat loops. Registration failures are logged, not fatal: the poll
// path still delivers messages.
func (m *accountMonitor) start(ctx context.Context, callbackURL string) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if callbackURL != "" {
		if err := m.client.RegisterCallback(ctx, callbackURL); err != nil {
			m.log.Warn("callback registration failed, relying on poll", "error", err)
		} else {
			m.log.Info("callback registered", "url", callbackURL)
		}
	}

	go m.heartbeatLoop(ctx)
	go m.pollLoop(ctx)
}

// stop cancels the monitor's background tasks. The dedup registry is set
// once at construction and never reassigned; it is discarded together with
// the monitor, so in-flight webhook batches can keep reading it without a
// lock while teardown proceeds.
func (m *accountMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.running = false
}

func (m *accountMonitor) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// pollLoop pulls the sync endpoint on a jittered schedule as a catch-up
// for webhook gaps. Cycles are serialized; failures never stop the
// schedule.
func (m *accountMonitor) pollLoop(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		timer := time.NewTimer(pollInterval(rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		msgs, err := m.client.Sync(ctx)
		if err != nil {
			m.log.Warn("poll sync failed", "error", err)
			continue
		}
		if len(msgs) > 0 {
			m.log.Debug("poll returned messages", "count", len(msgs))
			m.processSyncMessages(ctx, msgs)
		}
	}
}

// pollInterval samples the next poll delay: the base period plus a uniform
// jitter of up to pollJitter in either direction.
func pollInterval(rng *rand.Rand) time.Duration {
	return pollBaseInterval - pollJitter + time.Duration(rng.Int63n(int64(2*pollJitter)))
}

func (m *accountMonitor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.heartbeat(ctx)
		}
	}
}

// heartbeat issues one keep-alive call. Failures are warnings, not fatal:
// the session usually recovers on the next tick.
func (m *accountMonitor) heartbeat(ctx context.Context) {
	if err := m.client.Heartbeat(ctx); err != nil {
		m.log.Warn("heartbeat failed", "error", err)
	}
}

// processSyncMessages feeds a batch through admit, normalize, gate, and
// dispatch. Each entry is isolated: a panic or drop in one never affects
// its siblings.
func (m *accountMonitor) processSyncMessages(ctx context.Context, msgs []protocol.SyncMessage) {
	for i := range msgs {
		m.processOne(ctx, &msgs[i])
	}
}

func (m *accountMonitor) processOne(ctx context.Context, raw *protocol.SyncMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic processing message", "msg_id", raw.ID(), "panic", r)
		}
	}()

	if raw.Historic {
		return
	}
	if !m.dedup.Admit(raw.ID()) {
		return
	}

	msg := newInboundMessage(raw)
	text, ok := normalizeContent(msg.Text, msg.MsgType)
	if !ok {
		m.log.Debug("message dropped", "msg_id", msg.MsgID, "reason", "no dispatchable content")
		return
	}

	acc := m.resolve()
	verdict, reason := m.gate.Evaluate(ctx, acc, msg, text)
	if verdict == nil {
		m.log.Debug("message dropped",
			"msg_id", msg.MsgID,
			"sender", msg.SenderID,
			"reason", reason,
		)
		return
	}

	m.dispatch(msg, verdict)
}

// dispatch publishes the gated message onto the bus for the responder.
func (m *accountMonitor) dispatch(msg *inboundMessage, verdict *gateVerdict) {
	peerKind := "direct"
	from := channelName + ":" + msg.SenderID
	if msg.IsGroup {
		peerKind = "group"
		from = channelName + ":group:" + msg.GroupID
	}

	m.bus.PublishInbound(bus.InboundMessage{
		Channel:    channelName,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		ChatID:     msg.ChatID(),
		Content:    verdict.Text,
		PeerKind:   peerKind,
		AccountID:  m.accountID,
		Metadata: map[string]string{
			"dispatch_id": uuid.NewString(),
			"from":        from,
			"to":          channelName + ":" + msg.ChatID(),
			"msg_id":      msg.MsgID,
			"self_chat":   fmt.Sprintf("%t", verdict.SelfChat),
		},
	})
	m.log.Info("message dispatched",
		"sender", msg.SenderID,
		"chat", msg.ChatID(),
		"group", msg.IsGroup,
	)
}

// notifyChat is the gate's reply path for pairing instructions.
func (m *accountMonitor) notifyChat(ctx context.Context, chatID, text string) {
	if err := m.client.SendText(ctx, chatID, text, nil); err != nil {
		m.log.Warn("notice send failed", "chat", chatID, "error", err)
	}
}
