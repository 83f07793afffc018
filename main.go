package main

import "github.com/finjan-labs/ms-go-fortunes/cmd"

func main() {
	cmd.Execute()
}
