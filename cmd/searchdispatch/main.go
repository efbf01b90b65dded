package main

import (
	"os"

	"github.com/hashicorp-forge/searchdispatch/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
