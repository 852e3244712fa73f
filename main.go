package main

import (
	"os"

	"github.com/insightdelivered/statement-ingest/internal/cli"
)

const version = "2.0.0"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
