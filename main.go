package main

import "github.com/findy-network/findy-protocol-engine/cmd"

func main() {
	cmd.Execute()
}
