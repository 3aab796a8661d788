package main

import (
	"fmt"
	"os"

	"github.com/daydemir/research-ralph/internal/cli"
)

func main() {
	err := cli.Execute()
	if cli.ShouldPrint(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
