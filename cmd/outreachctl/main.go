// Command outreachctl runs the outreach service from a terminal: generate an
// icebreaker, run one outreach cycle, read today's stats, or provision
// backing storage.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is normal; config defaults and the environment apply
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
