package main

import (
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/cmd"
)

var version string

func main() {
	viper.Set("ibex.version", version)
	cmd.Execute()
}
