package main

import (
	"github.com/osuchanglab/autoMLSA/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
