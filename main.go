package main

import "github.com/KaramelBytes/dfops/cmd"

func main() {
	cmd.Execute()
}
