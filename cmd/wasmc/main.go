// Command wasmc compiles a JSON-encoded ESTree program to a WebAssembly
// binary. The compiler itself lives in the root `compiler` package; this
// command is a thin cobra CLI over it.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
