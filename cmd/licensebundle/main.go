package main

import (
	"licenses.software/bundle/cmd/licensebundle/cmd"
)

func main() {
	cmd.Execute()
}
