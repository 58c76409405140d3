package main

import "cookmode/cmd"

func main() {
	cmd.Execute()
}
