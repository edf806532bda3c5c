package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/stationman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stationman: %v\n", err)
		os.Exit(1)
	}
}
