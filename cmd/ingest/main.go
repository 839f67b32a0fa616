// Command ingest is the command-line entry point for archiving raw
// observation files into a datastream.
package main

import (
	"fmt"
	"os"

	"github.com/armdoe/dsproc/internal/ingestcli"
)

func main() {
	cfg := ingestcli.InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
