package main

import "github.com/KaramelBytes/aligncsv-cli/cmd"

func main() {
	cmd.Execute()
}
