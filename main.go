package main

import "github.com/suderio/ultramafia/cmd"

func main() {
	cmd.Execute()
}
