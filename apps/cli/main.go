package main

import (
	"os"

	"github.com/abdul-hamid-achik/reqflow/apps/cli/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(cmd.Execute(version, buildTime))
}
