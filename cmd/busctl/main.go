package main

import (
	"github.com/robotalks/sbus/pkg/cli/sh"
	"github.com/robotalks/sbus/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
