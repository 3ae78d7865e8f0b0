package main

import "github.com/rentora/payments/cmd"

func main() {
	cmd.Execute()
}
