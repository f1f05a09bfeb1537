package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes: 0 clean, 1 diagnostics found or run failed, 2 usage.
func main() {
	err := Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errDiagnostics) {
		fmt.Fprintf(os.Stderr, "pyrite: %v\n", err)
	}
	if !commandRan {
		os.Exit(2)
	}
	os.Exit(1)
}
