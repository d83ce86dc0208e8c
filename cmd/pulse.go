package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"qnos-go/drivers/adf4351"
)

var pulsePhase int

var pulseCmd = &cobra.Command{
	Use:   "pulse <index> <freq-mhz> <amplitude> <duration-ns>",
	Short: "Program a microwave pulse",
	Long: `Programs the synthesizer for one pulse. Frequency is in MHz,
amplitude in percent (0-100).`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals := make([]int, 4)
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil || v < 0 {
				return fmt.Errorf("argument %d must be a non-negative integer", i+1)
			}
			vals[i] = v
		}
		if !adf4351.InRange(uint32(vals[1])) {
			return fmt.Errorf("frequency %d MHz out of synthesizer range", vals[1])
		}
		if vals[2] > 100 {
			return fmt.Errorf("amplitude must be 0..100")
		}

		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		line := fmt.Sprintf("APPLY_PULSE %d %d %d %d %d",
			vals[0], vals[1], vals[2], vals[3], pulsePhase)
		reply, err := sendCommand(conn, line)
		if err != nil {
			return err
		}
		fmt.Println(replyString(reply))
		if reply != 'O' {
			return fmt.Errorf("controller rejected command")
		}
		return nil
	},
}

func init() {
	pulseCmd.Flags().IntVar(&pulsePhase, "phase", 0, "Phase word (0-4095)")
	rootCmd.AddCommand(pulseCmd)
}
