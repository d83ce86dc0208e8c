package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console to a controller",
	Long: `Opens an interactive console. Commands:

  fire <row> <col> <ms>                      fire the excitation laser
  pulse <idx> <freq> <amp> <dur> [phase]     program a pulse
  capture [file]                             capture a frame, save it
  dark [file]                                capture a dark frame
  raw <protocol line>                        send a raw protocol line
  quit`,
}

func init() {
	consoleCmd.RunE = runConsole
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	conn, err := openConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	in := bufio.NewScanner(os.Stdin)
	fmt.Println("qnos console; 'help' for commands, 'quit' to exit")
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}
		tokens, err := shlex.Split(in.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		switch tokens[0] {
		case "quit", "exit":
			return nil

		case "help":
			fmt.Println(consoleCmd.Long)

		case "fire":
			if len(tokens) != 4 {
				fmt.Println("usage: fire <row> <col> <ms>")
				continue
			}
			doRaw(conn, "FIRE_LASER "+strings.Join(tokens[1:], " "))

		case "pulse":
			if len(tokens) < 5 || len(tokens) > 6 {
				fmt.Println("usage: pulse <idx> <freq> <amp> <dur> [phase]")
				continue
			}
			argv := tokens[1:]
			if len(argv) == 4 {
				argv = append(argv, "0")
			}
			doRaw(conn, "APPLY_PULSE "+strings.Join(argv, " "))

		case "capture", "dark":
			out := "frame.png"
			if len(tokens) > 1 {
				out = tokens[1]
			}
			pix, err := captureFrame(conn, frameWidth, frameHeight, tokens[0] == "dark")
			if err != nil {
				fmt.Println("capture failed:", err)
				continue
			}
			if err := saveFrame(out, frameWidth, frameHeight, pix); err != nil {
				fmt.Println("save failed:", err)
				continue
			}
			fmt.Printf("saved %dx%d frame to %s\n", frameWidth, frameHeight, out)

		case "raw":
			if len(tokens) < 2 {
				fmt.Println("usage: raw <protocol line>")
				continue
			}
			doRaw(conn, strings.Join(tokens[1:], " "))

		default:
			fmt.Printf("unknown command %q; 'help' for commands\n", tokens[0])
		}
	}
}

func doRaw(conn Connection, line string) {
	reply, err := sendCommand(conn, line)
	if err != nil {
		fmt.Println("send failed:", err)
		return
	}
	fmt.Println(replyString(reply))
}
