// Package main provides the entry point for the watttime CLI.
package main

import (
	"watttime-api/internal/cli"
)

func main() {
	cli.Execute()
}
