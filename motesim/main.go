// Package main is the entry point of the motesim command-line tool.
package main

import "github.com/sarchlab/motesim/motesim/cmd"

func main() {
	cmd.Execute()
}
