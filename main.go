// Package main is the entry point for the taskengine CLI.
package main

import "github.com/amitk432/Resolve25-sub002/cmd"

func main() {
	cmd.Execute()
}
