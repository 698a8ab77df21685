package main

import (
	"os"

	cozerelaycmder "github.com/bytewidget/cozerelay/cmd/cozerelay"
)

func main() {
	cmd := cozerelaycmder.NewCozerelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
