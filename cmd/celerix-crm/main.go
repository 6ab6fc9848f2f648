package main

import "github.com/celerix-dev/celerix-crm/internal/cli"

func main() {
	cli.Execute()
}
