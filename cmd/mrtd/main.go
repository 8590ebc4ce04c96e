package main

import (
	"os"

	"github.com/gregLibert/mrtd/cmd/mrtd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
