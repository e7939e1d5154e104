package main

import "github.com/subraAntoine/apilexia/internal/cli"

func main() {
	cli.Execute()
}
