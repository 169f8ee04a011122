package main

import "github.com/piyachat/chainflow/cmd"

func main() {
	cmd.Execute()
}
