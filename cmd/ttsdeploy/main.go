package main

import (
	"os"

	"github.com/lumivoice/ttsdeploy/cmd/ttsdeploy/app"
)

func main() {
	cmd := app.NewTTSDeployCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
