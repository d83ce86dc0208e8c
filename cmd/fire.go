package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var fireCmd = &cobra.Command{
	Use:   "fire <row> <col> <duration-ms>",
	Short: "Fire the excitation laser at one array element",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := strconv.Atoi(args[0])
		if err != nil || row < 0 || row > 7 {
			return fmt.Errorf("row must be 0..7")
		}
		col, err := strconv.Atoi(args[1])
		if err != nil || col < 0 || col > 7 {
			return fmt.Errorf("col must be 0..7")
		}
		ms, err := strconv.Atoi(args[2])
		if err != nil || ms <= 0 {
			return fmt.Errorf("duration must be a positive millisecond count")
		}

		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		reply, err := sendCommand(conn, fmt.Sprintf("FIRE_LASER %d %d %d", row, col, ms))
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
	rootCmd.AddCommand(fireCmd)
}
