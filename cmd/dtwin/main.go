// Command dtwin runs dtsociety forecasts on local dataset files.
//
// Usage:
//
//	dtwin inspect gdp.csv
//	dtwin forecast -d gdp.csv:value --country DEU --periods 5
//	dtwin scenario -d unemployment.csv:value -d gdp.csv:gdp --country FRA --scenario gdp=1.2,1.4
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HatiCode/dtsociety/cmd/dtwin/commands"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
