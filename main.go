package main

import "github.com/zpp0196/localsend-go/cmd"

func main() {
	cmd.Execute()
}
