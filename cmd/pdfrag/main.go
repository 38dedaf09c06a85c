package main

import (
	"fmt"
	"os"

	"github.com/dgallion1/pdfrag/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pdfrag:", err)
		os.Exit(1)
	}
}
