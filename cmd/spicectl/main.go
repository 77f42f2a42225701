package main

import (
	"fmt"
	"os"

	"savethespice-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.LoadContainer(os.Getenv("CONFIG_DIR"))).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
