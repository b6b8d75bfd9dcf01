package main

import "github.com/mpapenbr/roadtt-engine/cmd"

func main() {
	cmd.Execute()
}
