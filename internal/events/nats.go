package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Message headers set on every published change, so consumers can route
// on the collection and actor without decoding the body.
const (
	HeaderResource = "Portal-Resource"
	HeaderActor    = "Portal-Actor"
)

// NATSPublisher publishes record changes to NATS.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name("portal-server")}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends e on its topic, e.g. "portal.tickets.updated".
func (p *NATSPublisher) Publish(ctx context.Context, e RecordChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s change: %w", e.Resource, err)
	}
	msg := nats.NewMsg(e.Topic())
	msg.Data = data
	msg.Header.Set(HeaderResource, e.Resource)
	if e.Actor != "" {
		msg.Header.Set(HeaderActor, e.Actor)
	}
	return p.conn.PublishMsg(msg)
}

// Flush blocks until the server has processed every published change.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber follows record changes on NATS. It reconnects forever;
// extra options such as reconnect handlers are appended to the defaults.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("portal-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Changes delivers the changes to one collection, or to all of them when
// resource is empty. Undecodable messages are dropped, as are changes that
// arrive while the channel is full.
func (s *NATSSubscriber) Changes(resource string) (<-chan RecordChanged, func(), error) {
	subject := AllTopics
	if resource != "" {
		subject = ResourceTopic(resource)
	}

	var (
		mu   sync.Mutex
		open = true
		out  = make(chan RecordChanged, 64)
	)
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		e, err := Decode(msg.Data)
		if err != nil {
			slog.Debug("dropping undecodable change", "subject", msg.Subject, "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !open {
			return
		}
		select {
		case out <- e:
		default:
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// The subscription must reach the server before changes published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", subject, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			open = false
			close(out)
			mu.Unlock()
		})
	}
	return out, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
