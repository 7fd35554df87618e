package main

import (
	"fmt"
	"os"

	// Timezones from config must resolve on hosts without zoneinfo.
	_ "time/tzdata"

	"tutorgrid/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = ""

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}
