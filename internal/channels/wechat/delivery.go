package wechat

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	// segmentBudget is the per-segment character cap for outbound text.
	segmentBudget = 500

	// Inter-segment pause range, mimicking successive human messages.
	minSegmentDelay = 3 * time.Second
	maxSegmentDelay = 8 * time.Second

	// Typing-delay model for the first segment: a reading/typing rate
	// plus a random thinking offset, clamped to a sane range.
	typingCharsPerSecond = 40.0
	minTypingDelay       = 800 * time.Millisecond
	maxTypingDelay       = 6 * time.Second
)

// sentenceTerminators covers both CJK and Latin sentence endings.
var sentenceTerminators = []rune{'。', '！', '？', '.', '!', '?'}

// sendFunc transmits one segment to a destination chat.
type sendFunc func(ctx context.Context, chatID, text string) error

// deliveryShaper turns one outbound payload into a sequence of bounded
// segments sent with randomized human-like pacing. Delays block only the
// dispatch they belong to and stop early on context cancellation.
type deliveryShaper struct {
	send sendFunc
	// wait is the pause primitive, replaceable in tests.
	wait func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	rng  *rand.Rand
	last time.Time
}

func newDeliveryShaper(send sendFunc) *deliveryShaper {
	return &deliveryShaper{
		send: send,
		wait: sleepCtx,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Deliver sends text plus media references to chatID. Media URLs are
// rendered as trailing "Attachment: <url>" lines. Returns on the first
// send error or cancellation; on success records the completion time.
func (d *deliveryShaper) Deliver(ctx context.Context, chatID, text string, mediaURLs []string) error {
	body := composeBody(text, mediaURLs)
	if body == "" {
		return nil
	}

	segments := splitSegments(body, segmentBudget)

	if delay := d.typingDelay(body); delay > 0 {
		if err := d.wait(ctx, delay); err != nil {
			return err
		}
	}

	for i, seg := range segments {
		if i > 0 {
			if err := d.wait(ctx, d.segmentDelay()); err != nil {
				return err
			}
		}
		if err := d.send(ctx, chatID, seg); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.last = time.Now()
	d.mu.Unlock()
	return nil
}

// LastDelivery returns when the most recent dispatch fully completed.
func (d *deliveryShaper) LastDelivery() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *deliveryShaper) segmentDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	span := maxSegmentDelay - minSegmentDelay
	return minSegmentDelay + time.Duration(d.rng.Int63n(int64(span)))
}

func (d *deliveryShaper) typingDelay(body string) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	typing := time.Duration(float64(len([]rune(body))) / typingCharsPerSecond * float64(time.Second))
	thinking := time.Duration(d.rng.Int63n(int64(1500 * time.Millisecond)))
	delay := typing + thinking
	if delay < minTypingDelay {
		delay = minTypingDelay
	}
	if delay > maxTypingDelay {
		delay = maxTypingDelay
	}
	return delay
}

// composeBody merges text and media references into one delivery body.
func composeBody(text string, mediaURLs []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))
	for _, u := range mediaURLs {
		if u = strings.TrimSpace(u); u == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Attachment: ")
		b.WriteString(u)
	}
	return b.String()
}

// splitSegments breaks body into segments no longer than budget runes.
// Paragraphs are packed greedily; a paragraph that alone exceeds the
// budget is further split on sentence boundaries, then hard-cut as a last
// resort.
func splitSegments(body string, budget int) []string {
	if len([]rune(body)) <= budget {
		return []string{body}
	}

	paragraphs := strings.Split(body, "\n\n")
	var segments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := len([]rune(para))

		if paraLen > budget {
			flush()
			segments = append(segments, splitSentences(para, budget)...)
			continue
		}

		// +2 accounts for the paragraph separator.
		if currentLen > 0 && currentLen+2+paraLen > budget {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()
	return segments
}

// splitSentences packs sentences into budget-bounded segments, hard
// cutting any single sentence that still exceeds the budget.
func splitSentences(text string, budget int) []string {
	sentences := cutSentences(text)
	var segments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, s := range sentences {
		runes := []rune(s)
		for len(runes) > budget {
			flush()
			segments = append(segments, strings.TrimSpace(string(runes[:budget])))
			runes = runes[budget:]
		}
		if currentLen+len(runes) > budget {
			flush()
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()
	return segments
}

// cutSentences splits text after each sentence terminator, keeping the
// terminator with its sentence.
func cutSentences(text string) []string {
	var sentences []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if isSentenceTerminator(r) {
			sentences = append(sentences, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, string(current))
	}
	return sentences
}

func isSentenceTerminator(r rune) bool {
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
