// Command catlconv converts a v1 catalogue stream into the v2 mmap
// file format, and can look up keys or walk a v2 file's trees once
// written.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "catlconv: %v\n", err)
		os.Exit(1)
	}
}
