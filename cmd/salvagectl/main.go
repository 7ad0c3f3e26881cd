package main

import "github.com/vietddude/salvage/internal/cli"

func main() {
	cli.Execute()
}
