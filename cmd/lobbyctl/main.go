package main

import "tictactoe-lobby/internal/cli"

func main() {
	cli.Execute()
}
