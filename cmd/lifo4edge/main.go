// Package main is the single-binary entrypoint for the edge controller.
package main

import "github.com/lifo4/edge-controller/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
