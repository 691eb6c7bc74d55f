// Package main is the entry point for the auditctl binary.
package main

import (
	"os"

	"deskaudit/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
