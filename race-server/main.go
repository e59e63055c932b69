package main

import "RC/cmd"

func main() {
	cmd.Execute()
}
