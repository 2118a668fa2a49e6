package main

import (
	"os"

	"github.com/vietddude/whalewatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
