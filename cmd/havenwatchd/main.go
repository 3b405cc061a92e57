// Command havenwatchd runs the HavenWatch credential service: the auth
// engine, its Redis-backed stores, and the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
