package main

import "github.com/quantfold/kalshi-arb/cmd"

func main() {
	cmd.Execute()
}
