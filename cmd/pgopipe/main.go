package main

import (
	pipecmd "github.com/pgopipe/pgopipe/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	pipecmd.SetVersionInfo(version, commit)
	pipecmd.Execute()
}
