package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/pagedeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pagedeck: %v\n", err)
		os.Exit(1)
	}
}
