package main

import "github.com/dfgviz/histflow/cmd"

func main() {
	cmd.Run()
}
