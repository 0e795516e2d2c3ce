package main

import "qgate/cmd"

func main() {
	cmd.Execute()
}
