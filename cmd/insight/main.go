package main

import "github.com/MikeSquared-Agency/insight/internal/cli"

func main() {
	cli.Execute()
}
