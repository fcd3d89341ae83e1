package main

import "offload/cmd"

func main() {
	cmd.Execute()
}
