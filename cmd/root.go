package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Frame geometry, shared by capture-related commands and the
	// simulated controller.
	frameWidth  int
	frameHeight int

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "qnos",
	Short: "QNOS controller tooling",
	Long: `qnos talks the QNOS line protocol to a controller, or runs the
controller against simulated hardware.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Simulated: neither flag given; an in-process controller is used.

For WebSocket authentication the password is read from the QNOS_PASSWORD
environment variable. The --password flag is intentionally not provided to
avoid leaking credentials in shell history.`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&frameWidth, "width", 640, "Frame width in pixels")
	rootCmd.PersistentFlags().IntVar(&frameHeight, "height", 480, "Frame height in pixels")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
