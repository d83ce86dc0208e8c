package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var captureDark bool

var captureCmd = &cobra.Command{
	Use:   "capture [output-file]",
	Short: "Capture a frame and save it",
	Long: `Captures one frame and writes it as PNG (or PGM when the output
path ends in .pgm). Default output is frame.png.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := "frame.png"
		if len(args) == 1 {
			out = args[0]
		}

		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		pix, err := captureFrame(conn, frameWidth, frameHeight, captureDark)
		if err != nil {
			return err
		}
		if err := saveFrame(out, frameWidth, frameHeight, pix); err != nil {
			return err
		}
		fmt.Printf("saved %dx%d frame to %s\n", frameWidth, frameHeight, out)
		return nil
	},
}

func init() {
	captureCmd.Flags().BoolVar(&captureDark, "dark", false, "Capture a dark (reference) frame")
	rootCmd.AddCommand(captureCmd)
}
