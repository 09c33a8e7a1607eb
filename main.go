package main

import (
	"os"

	"github.com/gennaro-ai/gennaro/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
