package main

import (
	"github.com/mchmarny/bowler/pkg/cli"
)

func main() {
	cli.Execute()
}
