// qnos-go - host tooling and simulator for the QNOS real-time controller.
package main

import (
	"os"

	"qnos-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
