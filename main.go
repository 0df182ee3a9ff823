package main

import (
	"fmt"
	"os"

	clipresentation "github.com/Zhima-Mochi/paywall/internal/presentation/cli"
)

var version = "dev"

func main() {
	app := clipresentation.NewApp(version)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
