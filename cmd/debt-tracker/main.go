// Package main is the entry point for the debt-tracker CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/debt-tracker/cmd/debt-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
