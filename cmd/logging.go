package cmd

import (
	"io"
	"log"
	"os"
)

var (
	INFOLogger  *log.Logger
	ERRORLogger *log.Logger
	DEBUGLogger *log.Logger
)

func setupLogging(debug bool) {
	flag := log.Ltime | log.Lmicroseconds | log.Lmsgprefix

	INFOLogger = log.New(os.Stderr, "INFO ", flag)
	ERRORLogger = log.New(os.Stderr, "ERROR ", flag)
	DEBUGLogger = log.New(os.Stderr, "DEBUG ", flag)
	if !debug {
		DEBUGLogger.SetOutput(io.Discard)
	}
}
