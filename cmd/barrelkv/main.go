// Command barrelkv runs the stats/introspection server for a barrelkv
// database directory. The key-value data plane is a Go library
// (package barrelkv); this binary is operational tooling only.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "barrelkv:", err)
		os.Exit(1)
	}
}
