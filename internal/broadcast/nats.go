package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ConnectNATS dials NATS with unlimited reconnects.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("swapd"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher relays events over core NATS so every instance's local hub
// receives them. Core NATS keeps the at-most-once contract: nothing is
// persisted for instances that are offline.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: nc, prefix: prefix}
}

func (p *NATSPublisher) Publish(_ context.Context, group string, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subjectFor(p.prefix, group), payload); err != nil {
		return fmt.Errorf("nats publish to %s: %w", group, err)
	}
	return nil
}

// RawSink accepts already encoded events for a group.
type RawSink interface {
	Broadcast(group string, payload []byte) int
}

// Relay subscribes to every group under prefix and forwards payloads into sink.
func Relay(nc *nats.Conn, prefix string, sink RawSink) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		group, ok := groupFromSubject(prefix, msg.Subject)
		if !ok {
			return
		}
		sink.Broadcast(group, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s.>: %w", prefix, err)
	}
	return sub, nil
}

func subjectFor(prefix, group string) string {
	return prefix + "." + group
}

func groupFromSubject(prefix, subject string) (string, bool) {
	group := strings.TrimPrefix(subject, prefix+".")
	if group == subject || group == "" || strings.Contains(group, ".") {
		return "", false
	}
	return group, true
}
