package main

import (
	"os"

	"github.com/couchcryptid/hazard-map-service/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
