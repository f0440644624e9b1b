package main

import "ccm/internal/cli"

func main() {
	cli.Execute()
}
