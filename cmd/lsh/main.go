package main

import (
	"os"

	"github.com/marcelocantos/lsh/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return cli.NewApp(version).Execute(os.Args[1:])
}
