package cmd

import (
	"context"
	"io"
	"time"

	"qnos-go/bus"
	"qnos-go/ctl"
	"qnos-go/drivers/ov7670"
	"qnos-go/sim"
)

// simSystem is a controller wired to simulated hardware, ticking in its own
// goroutine.
type simSystem struct {
	c      *ctl.Controller
	b      *bus.Bus
	cancel context.CancelFunc
}

// newSimSystem builds and starts a simulated controller.
func newSimSystem(w, h int) *simSystem {
	b := bus.NewBus(64)
	c := ctl.New(ctl.Config{
		Width:  w,
		Height: h,
		TickHz: 1_000_000,
	}, b.NewConnection("ctl"))

	scl, sda := c.Wires()
	periph := sim.NewPeripheral(c.Fabric(), scl, sda, ov7670.AddressDefault)
	pixels := sim.NewPixelSource(c.Capture(), c.Excite())
	model := sim.NewSynthModel(c.Synth())
	c.Attach(periph, pixels, model)

	ctx, cancel := context.WithCancel(context.Background())
	go tickLoop(ctx, c)
	return &simSystem{c: c, b: b, cancel: cancel}
}

func (s *simSystem) Stop() { s.cancel() }

// tickLoop free-runs the fabric in batches, yielding between them so the IO
// goroutines keep up. Wall-clock accuracy is not a goal of the simulator.
func tickLoop(ctx context.Context, c *ctl.Controller) {
	const batch = 10_000
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.Run(batch)
		time.Sleep(time.Millisecond)
	}
}

// simConnection adapts the simulated controller's transport rings to the
// Connection interface.
type simConnection struct {
	sys *simSystem
}

func openSimConnection(w, h int) (Connection, error) {
	return &simConnection{sys: newSimSystem(w, h)}, nil
}

func (s *simConnection) Read(p []byte) (int, error) {
	tx := s.sys.c.Tx()
	for {
		if n := tx.ReadInto(p); n > 0 {
			return n, nil
		}
		select {
		case <-tx.Readable():
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *simConnection) Write(p []byte) (int, error) {
	rx := s.sys.c.Rx()
	total := 0
	for total < len(p) {
		n := rx.WriteFrom(p[total:])
		total += n
		if n == 0 {
			select {
			case <-rx.Writable():
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	return total, nil
}

func (s *simConnection) Close() error {
	s.sys.Stop()
	return nil
}

// bridge pumps bytes between a connection and the controller rings until the
// context is cancelled or the connection fails.
func bridge(ctx context.Context, conn io.ReadWriter, c *ctl.Controller) error {
	errCh := make(chan error, 2)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			data := buf[:n]
			for len(data) > 0 {
				w := c.Rx().WriteFrom(data)
				data = data[w:]
				if w == 0 {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case <-c.Rx().Writable():
					case <-time.After(5 * time.Millisecond):
					}
				}
			}
		}
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n := c.Tx().ReadInto(buf)
			if n == 0 {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case <-c.Tx().Readable():
				case <-time.After(5 * time.Millisecond):
				}
				continue
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
