package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	configsvc "qnos-go/services/config"
	"qnos-go/services/heartbeat"
	"qnos-go/services/telemetry"
)

var (
	serveListen string
	serveBroker string
	serveDevice string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller against simulated hardware",
	Long: `Runs the controller with a simulated sensor, synthesizer and laser
array, and serves the command protocol.

Without flags the protocol runs over stdin/stdout. With --listen the
protocol is served to WebSocket clients; with --port it is bridged to a
serial device. With --broker, controller events are uplinked over MQTT.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "WebSocket listen address (e.g. :8080)")
	serveCmd.Flags().StringVar(&serveBroker, "broker", "", "MQTT broker URL for telemetry (e.g. tcp://localhost:1883)")
	serveCmd.Flags().StringVar(&serveDevice, "device", "bench", "Device ID for embedded configuration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys := newSimSystem(frameWidth, frameHeight)
	defer sys.Stop()

	ctx = context.WithValue(ctx, configsvc.CtxDeviceKey, serveDevice)
	configsvc.NewConfigService().Start(ctx, sys.b.NewConnection("config"))

	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, sys.b.NewConnection("heartbeat"), sys.c)

	if serveBroker != "" {
		go telemetry.Start(ctx, sys.b.NewConnection("telemetry"), telemetry.Config{
			BrokerURL: serveBroker,
			DeviceID:  serveDevice,
		})
		INFOLogger.Printf("telemetry uplink to %s", serveBroker)
	}

	switch {
	case serveListen != "":
		return serveWebSocket(ctx, sys)
	case portName != "":
		return serveSerial(ctx, sys)
	default:
		INFOLogger.Printf("serving protocol on stdio")
		return bridge(ctx, stdioConn{}, sys.c)
	}
}

func serveSerial(ctx context.Context, sys *simSystem) error {
	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		return err
	}
	defer conn.Close()
	INFOLogger.Printf("serving protocol on %s @ %d", portName, baudRate)
	return bridge(ctx, conn, sys.c)
}

func serveWebSocket(ctx context.Context, sys *simSystem) error {
	upgrader := websocket.Upgrader{
		// The protocol carries no browser credentials; any origin may
		// connect on the lab network.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			ERRORLogger.Printf("upgrade failed: %v", err)
			return
		}
		INFOLogger.Printf("client connected from %s", r.RemoteAddr)
		conn := &WebSocketConnection{conn: ws}
		if err := bridge(ctx, conn, sys.c); err != nil {
			DEBUGLogger.Printf("client %s: %v", r.RemoteAddr, err)
		}
		conn.Close()
		INFOLogger.Printf("client %s disconnected", r.RemoteAddr)
	})

	srv := &http.Server{Addr: serveListen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	INFOLogger.Printf("listening on ws://%s", serveListen)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// stdioConn serves the protocol on the process's own stdin/stdout.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
