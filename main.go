package main

import "github.com/kasuganosora/gildedrose/cli"

func main() {
	cli.Execute()
}
