package main

import "github.com/GoliathLabs/applica/cmd/gatewayapi/cmd"

func main() {
	cmd.Execute()
}
