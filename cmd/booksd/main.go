// booksd serves the book inventory REST API.
package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
