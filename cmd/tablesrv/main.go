package main

import "github.com/tansive/tablebase/internal/cli"

func main() {
	cli.Execute()
}
