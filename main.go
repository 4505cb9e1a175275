package main

import "github.com/Yates-Labs/scholar/cmd"

func main() {
	cmd.Execute()
}
