package server

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/portal/internal/events"
)

const (
	// changeHistorySize is how many recent changes each collection keeps
	// for Last-Event-ID replay.
	changeHistorySize = 256

	sseKeepaliveInterval = 15 * time.Second
)

// change is one record change as sent to stream clients.
type change struct {
	ID       uint64
	Resource string
	Topic    string
	Data     []byte // encoded events.RecordChanged
}

// history is a ring of one collection's most recent changes.
type history struct {
	buf  [changeHistorySize]*change
	next int
	n    int
}

func (h *history) add(c *change) {
	h.buf[h.next] = c
	h.next = (h.next + 1) % changeHistorySize
	if h.n < changeHistorySize {
		h.n++
	}
}

// since appends the retained changes after id to out, oldest first.
func (h *history) since(id uint64, out []*change) []*change {
	start := (h.next - h.n + changeHistorySize) % changeHistorySize
	for i := range h.n {
		if c := h.buf[(start+i)%changeHistorySize]; c.ID > id {
			out = append(out, c)
		}
	}
	return out
}

// changeFeed fans record changes out to stream clients. History is kept per
// collection so a busy collection never pushes a quiet one's changes out of
// replay.
type changeFeed struct {
	mu      sync.RWMutex
	seq     uint64
	history map[string]*history
	streams map[*stream]struct{}
}

// stream is one connected client. visible holds the collections the client
// may see; nil means all of them.
type stream struct {
	visible map[string]bool
	topics  []string
	ch      chan *change
}

func newChangeFeed() *changeFeed {
	return &changeFeed{
		history: make(map[string]*history),
		streams: make(map[*stream]struct{}),
	}
}

// publish records a change and delivers it to every stream that wants it.
// Slow streams drop changes rather than block the writer.
func (f *changeFeed) publish(resource, topic string, data []byte) *change {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	c := &change{ID: f.seq, Resource: resource, Topic: topic, Data: data}
	h, ok := f.history[resource]
	if !ok {
		h = &history{}
		f.history[resource] = h
	}
	h.add(c)

	for s := range f.streams {
		if !s.wants(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
	return c
}

func (f *changeFeed) open(visible map[string]bool, topics []string) *stream {
	s := &stream{visible: visible, topics: topics, ch: make(chan *change, 64)}
	f.mu.Lock()
	f.streams[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *changeFeed) close(s *stream) {
	f.mu.Lock()
	delete(f.streams, s)
	f.mu.Unlock()
}

// replay returns the retained changes after lastID that s would have been
// sent, in publish order.
func (f *changeFeed) replay(s *stream, lastID uint64) []*change {
	var out []*change
	f.mu.RLock()
	for name, h := range f.history {
		if s.visible == nil || s.visible[name] {
			out = h.since(lastID, out)
		}
	}
	f.mu.RUnlock()

	out = slices.DeleteFunc(out, func(c *change) bool { return !s.wants(c) })
	slices.SortFunc(out, func(a, b *change) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *stream) wants(c *change) bool {
	if s.visible != nil && !s.visible[c.Resource] {
		return false
	}
	if len(s.topics) == 0 {
		return true
	}
	for _, pattern := range s.topics {
		if matchTopicPattern(pattern, c.Topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a NATS-style
// pattern: "*" is one segment, a trailing ">" is one or more.
func matchTopicPattern(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// visibleResources resolves the collections a stream may see. Named
// collections are checked against the caller's role; with none named, a
// caller with a role sees only the collections that role can open.
func (s *PortalServer) visibleResources(names []string, c caller) (map[string]bool, int, error) {
	if len(names) == 0 {
		if c.Role == "" {
			return nil, 0, nil
		}
		visible := map[string]bool{}
		for _, res := range s.order {
			if res.AllowedFor(c.Role) {
				visible[res.Name] = true
			}
		}
		return visible, 0, nil
	}

	visible := make(map[string]bool, len(names))
	for _, name := range names {
		res, err := s.resource(name)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		if err := authorize(res, c); err != nil {
			return nil, http.StatusForbidden, err
		}
		visible[res.Name] = true
	}
	return visible, 0, nil
}

// handleEventStream serves GET /v1/events/stream as server-sent events.
func (s *PortalServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	q := r.URL.Query()
	visible, status, err := s.visibleResources(trimmed(strings.Split(q.Get("resource"), ",")), callerFrom(r))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	st := s.feed.open(visible, trimmed(strings.Split(q.Get("topics"), ",")))
	defer s.feed.close(st)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Changes published between open and replay arrive on both paths; sent
	// keeps the live loop from repeating them.
	var sent uint64
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, c := range s.feed.replay(st, lastID) {
			writeChange(w, c)
			sent = c.ID
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case c := <-st.ch:
			if c.ID <= sent {
				continue
			}
			writeChange(w, c)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeChange(w http.ResponseWriter, c *change) {
	fmt.Fprintf(w, "id:%d\n", c.ID)
	fmt.Fprintf(w, "event:%s\n", c.Topic)
	fmt.Fprintf(w, "data:%s\n\n", c.Data)
}

// streamChange hands a change event to connected stream clients.
func (s *PortalServer) streamChange(e events.RecordChanged) {
	if s.feed == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("failed to encode change for event stream", "topic", e.Topic(), "error", err)
		return
	}
	s.feed.publish(e.Resource, e.Topic(), data)
}
