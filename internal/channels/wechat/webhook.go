package wechat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/wxbridge/internal/channels"
	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
)

const maxWebhookBody = 8 << 20

// webhookRouter maps gateway push callbacks onto account monitors. The
// trailing path element is the account's auth token; routes come and go
// with monitor start/stop.
type webhookRouter struct {
	basePath string
	log      *slog.Logger
	limiter  *channels.WebhookRateLimiter

	mu     sync.RWMutex
	routes map[string]*accountMonitor
}

func newWebhookRouter(basePath string, log *slog.Logger) *webhookRouter {
	basePath = "/" + strings.Trim(basePath, "/")
	return &webhookRouter{
		basePath: basePath,
		log:      log,
		limiter:  channels.NewWebhookRateLimiter(),
		routes:   make(map[string]*accountMonitor),
	}
}

// register binds token to a monitor. The full callback path is
// "<basePath>/<token>".
func (r *webhookRouter) register(token string, m *accountMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[token] = m
}

func (r *webhookRouter) deregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, token)
}

func (r *webhookRouter) lookup(token string) *accountMonitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routes[token]
}

// ServeHTTP accepts gateway push payloads. It acknowledges before
// processing so the gateway connection is never held open for pipeline
// work.
func (r *webhookRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	token, ok := strings.CutPrefix(req.URL.Path, r.basePath+"/")
	if !ok || token == "" || strings.Contains(token, "/") {
		http.NotFound(w, req)
		return
	}

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	monitor := r.lookup(token)
	if monitor == nil {
		http.NotFound(w, req)
		return
	}

	if !r.limiter.Allow(clientIP(req)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	go func() {
		msgs := protocol.ExtractAddMsgs(body)
		if len(msgs) == 0 {
			return
		}
		monitor.processSyncMessages(context.Background(), msgs)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(req *http.Request) string {
	if idx := strings.LastIndex(req.RemoteAddr, ":"); idx > 0 {
		return req.RemoteAddr[:idx]
	}
	return req.RemoteAddr
}
