package main

import "example.com/backstage/services/yard/cmd"

func main() {
	cmd.Execute()
}
