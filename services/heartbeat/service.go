// Package heartbeat periodically publishes controller liveness: tick count,
// configuration state and the latched fault counter.
package heartbeat

import (
	"context"
	"time"

	"qnos-go/bus"
	"qnos-go/ctl"
)

var topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}

type Service struct {
	Interval time.Duration
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, c *ctl.Controller) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	if s.Interval <= 0 {
		s.Interval = time.Second
	}
	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			_, latched, count := c.Fault()
			conn.Publish(conn.NewMessage(bus.Topic{"ctl", "heartbeat"}, map[string]any{
				"tick":        c.Ticks(),
				"config_done": c.ConfigDone(),
				"faulted":     latched,
				"fault_count": count,
				"ts_ms":       time.Now().UnixMilli(),
			}, false))
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
				}
			}
		}
	}
}

// Start launches the heartbeat publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection, c *ctl.Controller) error {
	go s.serviceLoop(ctx, conn, c)
	return nil
}
