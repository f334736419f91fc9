package main

import (
	"github.com/pyneda/consentscan/cmd"
)

func main() {
	cmd.Execute()
}
