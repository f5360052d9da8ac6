package main

import (
	"fmt"
	"os"

	"github.com/priboy68rus/topdeck-compare/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
