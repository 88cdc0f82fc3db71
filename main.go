package main

import (
	"os"
	_ "time/tzdata"

	"github.com/chxlky/boardsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
