package main

import (
	"os"

	"github.com/arloliu/go-robohal/cmd/robohal/commands"
	"github.com/arloliu/go-robohal/hal"
)

// Version information, set during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed by the commands package; boards are made safe on the way out.
	if err := hal.Run(commands.Execute); err != nil {
		os.Exit(1)
	}
}
