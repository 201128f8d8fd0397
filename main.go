package main

import (
	"fmt"
	"os"

	"github.com/blackt666/immoxx--sub004/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
