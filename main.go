package main

import "github.com/reqforge/apiserver/cmd"

func main() {
	cmd.Execute()
}
