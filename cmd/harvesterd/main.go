package main

import "github.com/minhct/harvesterd/internal/cli"

func main() {
	cli.Execute()
}
