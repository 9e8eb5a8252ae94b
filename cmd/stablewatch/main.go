package main

import "stablecoin-watch/internal/cli"

func main() {
	cli.Execute()
}
