package main

import "hoplink/cmd"

func main() {
	cmd.Execute()
}
