package main

import (
	"os"

	"github.com/parcoord/parcoord/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
