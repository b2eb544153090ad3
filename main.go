package main

import (
	"github.com/Zenodotos/nowezdrowie/cmd"
)

var version = "1.0.0"

func main() {
	cmd.Version = version
	cmd.Execute()
}
