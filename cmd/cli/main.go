// Package main is the entry point for the crewsync CLI binary.
package main

import (
	"os"

	cli "crewsync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
