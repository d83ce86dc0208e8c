package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Exercise a simulated controller end to end",
	Long: `Runs the full command set against an in-process simulated
controller and checks every reply: laser fire, pulse programming, frame and
dark-frame capture, and protocol error handling.`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

func runSelftest(cmd *cobra.Command, args []string) error {
	// Small frames keep the run short.
	conn, err := openSimConnection(64, 48)
	if err != nil {
		return err
	}
	defer conn.Close()

	failed := 0
	check := func(name string, ok bool, detail string) {
		if ok {
			INFOLogger.Printf("PASS %s", name)
			return
		}
		ERRORLogger.Printf("FAIL %s: %s", name, detail)
		failed++
	}

	reply, err := sendCommand(conn, "FIRE_LASER 2 3 50")
	check("fire_laser", err == nil && reply == 'O', fmt.Sprintf("reply=%q err=%v", reply, err))

	reply, err = sendCommand(conn, "APPLY_PULSE 1 3000 50 100 0")
	check("apply_pulse", err == nil && reply == 'O', fmt.Sprintf("reply=%q err=%v", reply, err))

	reply, err = sendCommand(conn, "FIRE_LASER 2 3 5000")
	check("rearm_laser", err == nil && reply == 'O', fmt.Sprintf("reply=%q err=%v", reply, err))

	pix, err := captureFrame(conn, 64, 48, false)
	bright := 0
	for _, v := range pix {
		if v > 100 {
			bright++
		}
	}
	check("capture_frame", err == nil && len(pix) == 64*48 && bright > 0,
		fmt.Sprintf("len=%d bright=%d err=%v", len(pix), bright, err))

	pix, err = captureFrame(conn, 64, 48, true)
	check("capture_dark", err == nil && len(pix) == 64*48,
		fmt.Sprintf("len=%d err=%v", len(pix), err))

	reply, err = sendCommand(conn, "BOGUS 1 2 3")
	check("unknown_command", err == nil && reply == 'E', fmt.Sprintf("reply=%q err=%v", reply, err))

	reply, err = sendCommand(conn, "FIRE_LASER 9 9 1")
	check("range_check", err == nil && reply == 'E', fmt.Sprintf("reply=%q err=%v", reply, err))

	if failed > 0 {
		return fmt.Errorf("%d selftest checks failed", failed)
	}
	INFOLogger.Printf("all selftest checks passed")
	return nil
}
