package main

import "bulkq/cmd"

func main() {
	cmd.Run()
}
