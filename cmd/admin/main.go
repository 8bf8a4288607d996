package main

import (
	"fmt"
	"os"

	"cleancity/backend/internal/observability"
)

func main() {
	if err := newRootCmd(openService, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}
