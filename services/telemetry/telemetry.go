// Package telemetry uplinks controller events from the internal bus to an
// MQTT broker. Payloads are CBOR-encoded; the link is supervised with
// exponential backoff and reports its own state on the bus.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"

	"qnos-go/bus"
)

// Config selects the broker and the remote topic namespace.
type Config struct {
	BrokerURL string // e.g. "tcp://localhost:1883"
	ClientID  string
	DeviceID  string // remote topics are <BaseTopic>/<DeviceID>/<bus topic>
	BaseTopic string
	QoS       byte
}

func (c *Config) withDefaults() {
	if c.ClientID == "" {
		c.ClientID = "qnos-telemetry"
	}
	if c.DeviceID == "" {
		c.DeviceID = "qnos"
	}
	if c.BaseTopic == "" {
		c.BaseTopic = "qnos"
	}
}

type Service struct {
	conn *bus.Connection
	cfg  Config
}

// Start runs the uplink until ctx is cancelled. It blocks.
func Start(ctx context.Context, conn *bus.Connection, cfg Config) {
	cfg.withDefaults()
	s := &Service{conn: conn, cfg: cfg}
	s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	// Controller events live two and three levels under ctl/.
	subs := []*bus.Subscription{
		s.conn.Subscribe(bus.Topic{"ctl", bus.Wildcard}),
		s.conn.Subscribe(bus.Topic{"ctl", bus.Wildcard, bus.Wildcard}),
	}
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()

	s.publishState("idle", "connecting", nil)

	backoff := backoffSeq(250*time.Millisecond, 10*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client, err := s.connect(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "connect_failed_retrying",
				fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "connected", nil)
		err = s.forward(ctx, client, subs)
		client.Disconnect(250)
		if err == nil {
			return // context cancelled
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying",
			fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (s *Service) connect(ctx context.Context) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(false)
	client := mqtt.NewClient(opts)

	token := client.Connect()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// forward pumps bus messages out to the broker. Returns nil on context
// cancellation, an error when the link should be re-established.
func (s *Service) forward(ctx context.Context, client mqtt.Client, subs []*bus.Subscription) error {
	for {
		var msg *bus.Message
		select {
		case <-ctx.Done():
			return nil
		case msg = <-subs[0].Channel():
		case msg = <-subs[1].Channel():
		}
		if msg == nil {
			return fmt.Errorf("bus subscription closed")
		}

		payload, err := cbor.Marshal(msg.Payload)
		if err != nil {
			// Unencodable payloads are skipped, not fatal.
			continue
		}
		topic := s.remoteTopic(msg.Topic)
		token := client.Publish(topic, s.cfg.QoS, msg.Retained, payload)
		select {
		case <-ctx.Done():
			return nil
		case <-token.Done():
		}
		if err := token.Error(); err != nil {
			return err
		}
	}
}

func (s *Service) remoteTopic(t bus.Topic) string {
	parts := make([]string, 0, len(t)+2)
	parts = append(parts, s.cfg.BaseTopic, s.cfg.DeviceID)
	for _, tok := range t {
		parts = append(parts, fmt.Sprint(tok))
	}
	return strings.Join(parts, "/")
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"telemetry", "state"}, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
