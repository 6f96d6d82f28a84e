package main

import "github.com/agentic-research/florg/cmd"

func main() {
	cmd.Execute()
}
