package main

import (
	"os"

	"github.com/prime-sieve/cmd/sieve/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
