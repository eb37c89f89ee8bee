package main

import (
	"github.com/dreamsxin/procmetrics/cli"
)

func main() {
	cli.Execute()
}
