package main

import "github.com/matthijsr/til-vhdl/cmd"

func main() {
	cmd.Execute()
}
