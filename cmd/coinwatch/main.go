package main

import "github.com/vietddude/coinwatch/internal/cli"

func main() {
	cli.Execute()
}
