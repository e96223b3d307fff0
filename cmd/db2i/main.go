// Package main provides the entry point for the db2i CLI.
package main

import (
	"context"
	"fmt"
	"os"

	// Registers the "odbc" database/sql driver for the IBM i Access ODBC driver.
	_ "github.com/alexbrainman/odbc"

	"github.com/ibmi-agents/db2i-go/interfaces/cli"
)

func main() {
	app := cli.New()

	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
