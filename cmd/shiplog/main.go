package main

import "github.com/shiplog/shiplog/cmd/shiplog/commands"

func main() {
	commands.Execute()
}
