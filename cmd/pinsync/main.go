package main

import (
	"os"

	"github.com/MrSnakeDoc/pinsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
