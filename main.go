package main

import (
	"fmt"
	"os"

	"github.com/514-labs/moosestack/cli"
	"github.com/514-labs/moosestack/examples/sample"
)

func main() {
	registry, err := sample.Registry()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cmd := cli.RootCmd(registry)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
