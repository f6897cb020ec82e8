// Package wechat implements the WeChat gateway bridge channel: webhook and
// poll ingestion, dedup, content normalization, the message gate, and
// human-cadence outbound delivery.
package wechat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/wxbridge/internal/bus"
	"github.com/nextlevelbuilder/wxbridge/internal/channels"
	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store"
)

const channelName = "wechat"

// Channel bridges WeChat gateway accounts onto the message bus. Each
// enabled account gets its own monitor; all monitors share one webhook
// listener.
type Channel struct {
	*channels.BaseChannel
	cfg     *config.WeChatConfig
	bridge  config.BridgeConfig
	pairing store.PairingStore
	log     *slog.Logger

	mu       sync.Mutex
	monitors map[string]*accountMonitor
	router   *webhookRouter
	tokens   map[string]string // accountID -> registered route token
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates the WeChat channel. The pairing store may be nil, in which
// case the pairing access tier admits only configured allow-list entries.
func New(cfg *config.WeChatConfig, bridge config.BridgeConfig, msgBus *bus.MessageBus, pairing store.PairingStore) *Channel {
	log := slog.Default().With("channel", channelName)
	return &Channel{
		BaseChannel: channels.NewBaseChannel(channelName, msgBus),
		cfg:         cfg,
		bridge:      bridge,
		pairing:     pairing,
		log:         log,
		monitors:    make(map[string]*accountMonitor),
		tokens:      make(map[string]string),
		router:      newWebhookRouter(bridge.WebhookPath, log),
	}
}

// Start brings up the webhook listener and one monitor per enabled
// account. An account that fails to resolve credentials is skipped with a
// warning; Start fails only when no account could be started or the
// listener cannot bind.
func (c *Channel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.startListener(ctx); err != nil {
		cancel()
		return err
	}

	var g errgroup.Group
	var started atomic.Int32
	for _, id := range c.cfg.AccountIDs() {
		accountID := id
		g.Go(func() error {
			acc := c.cfg.ResolveAccount(accountID)
			if !acc.Enabled {
				c.log.Debug("account disabled, skipping", "account", accountID)
				return nil
			}
			if err := c.startAccount(ctx, acc); err != nil {
				c.log.Warn("account start failed", "account", accountID, "error", err)
				return nil
			}
			started.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	count := int(started.Load())
	if count == 0 {
		cancel()
		_ = c.shutdownListener(context.Background())
		return errors.New("no wechat account could be started")
	}

	c.SetRunning(true)
	c.log.Info("wechat channel started", "accounts", count)
	return nil
}

func (c *Channel) startAccount(ctx context.Context, acc config.ResolvedAccount) error {
	monitor, err := newAccountMonitor(acc.AccountID, c.cfg, c.Bus(), c.pairing, c.log)
	if err != nil {
		return err
	}

	c.router.register(acc.AuthToken, monitor)

	c.mu.Lock()
	c.monitors[acc.AccountID] = monitor
	c.tokens[acc.AccountID] = acc.AuthToken
	c.mu.Unlock()

	monitor.start(ctx, c.callbackURL(acc.AuthToken))
	return nil
}

// StopAccount tears down one account: its webhook route, poll timer, and
// dedup state go with it. In-flight deliveries finish on their own.
func (c *Channel) StopAccount(accountID string) {
	c.mu.Lock()
	monitor := c.monitors[accountID]
	token := c.tokens[accountID]
	delete(c.monitors, accountID)
	delete(c.tokens, accountID)
	c.mu.Unlock()

	if monitor == nil {
		return
	}
	c.router.deregister(token)
	monitor.stop()
	c.log.Info("account stopped", "account", accountID)
}

// Stop shuts down every monitor and the webhook listener.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	ids := make([]string, 0, len(c.monitors))
	for id := range c.monitors {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.StopAccount(id)
	}

	err := c.shutdownListener(ctx)
	c.SetRunning(false)
	c.log.Info("wechat channel stopped")
	return err
}

// Send delivers a responder payload to its destination chat through the
// account's delivery shaper.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	accountID := msg.AccountID
	if accountID == "" {
		accountID = c.cfg.ResolveAccount("").AccountID
	}

	c.mu.Lock()
	monitor := c.monitors[accountID]
	c.mu.Unlock()
	if monitor == nil {
		return fmt.Errorf("no running monitor for account %q", accountID)
	}

	content := msg.Content
	acc := monitor.resolve()
	if acc.AISuffix != "" && content != "" {
		content = strings.TrimRight(content, " \n") + acc.AISuffix
	}

	var mediaURLs []string
	for _, m := range msg.Media {
		mediaURLs = append(mediaURLs, m.URL)
	}

	return monitor.shaper.Deliver(ctx, msg.ChatID, content, mediaURLs)
}

// LastDelivery reports when an account's most recent outbound dispatch
// completed. Zero time when unknown.
func (c *Channel) LastDelivery(accountID string) time.Time {
	c.mu.Lock()
	monitor := c.monitors[accountID]
	c.mu.Unlock()
	if monitor == nil {
		return time.Time{}
	}
	return monitor.shaper.LastDelivery()
}

func (c *Channel) startListener(ctx context.Context) error {
	addr := net.JoinHostPort(c.bridge.Host, fmt.Sprintf("%d", c.bridge.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webhook listener: %w", err)
	}

	srv := &http.Server{
		Handler:           c.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	c.mu.Lock()
	c.server = srv
	c.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("webhook server failed", "error", err)
		}
	}()
	c.log.Info("webhook listener started", "addr", addr, "path", c.bridge.WebhookPath)
	return nil
}

func (c *Channel) shutdownListener(ctx context.Context) error {
	c.mu.Lock()
	srv := c.server
	c.server = nil
	c.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// callbackURL builds the externally reachable webhook URL registered with
// the gateway. Empty when no public URL is configured; registration is
// skipped and the poll path carries the account.
func (c *Channel) callbackURL(token string) string {
	if c.bridge.PublicURL == "" {
		return ""
	}
	base := strings.TrimRight(c.bridge.PublicURL, "/")
	path := "/" + strings.Trim(c.bridge.WebhookPath, "/")
	return base + path + "/" + token
}
