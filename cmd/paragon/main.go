// cmd/paragon/main.go
package main

import (
	cmd "github.com/mwiater/paragon/internal/cli"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main starts the paragon CLI application by delegating to the
// cobra root command defined in the paragon package. It does not
// take any arguments and does not return a value.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
