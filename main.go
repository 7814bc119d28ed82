package main

import "github.com/mselser95/polymarket-hedge/cmd"

func main() {
	cmd.Execute()
}
