// Command coach runs the live-metrics voice coach.
//
// Usage:
//
//	coach serve             accept coaching sessions over WebRTC
//	coach metrics           fetch one workout snapshot and print it
//
// Configuration comes from the environment, optionally seeded from a
// .env file (see --env-file).
package main

import (
	"fmt"
	"os"

	"github.com/teslashibe/go-coach/cmd/coach/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
