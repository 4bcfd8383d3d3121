// packetctl serves, drives and inspects length-prefixed packet streams.
//
//	packetctl serve   [--async] [--metrics]      echo every received envelope
//	packetctl send    [--count N] [--size B]     send envelopes and time the echoes
//	packetctl inspect [--file PATH]              dump frames from a file or stdin
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danmuck/packetio/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "packetctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:], stdout)
	case "send":
		return runSend(args[1:], stdout)
	case "inspect":
		return runInspect(args[1:], stdin, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: packetctl <serve|send|inspect> [flags]")
	fmt.Fprintln(w, "run 'packetctl <command> --help' for command flags")
}
