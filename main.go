package main

import "github.com/avolkov/farview/cmd"

func main() {
	cmd.Execute()
}
