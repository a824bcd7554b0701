// Command renexctl administers a renex installation: it exports and backs up
// the subscriber list and sends article notifications and the monthly digest.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
