package main

import "github.com/boycivenga/netgate/cmd/netgate/commands"

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, buildTime)
	commands.Execute()
}
