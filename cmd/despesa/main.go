package main

import "github.com/oriolbns/despesa/cmd/despesa/cmd"

func main() {
	cmd.Execute()
}
