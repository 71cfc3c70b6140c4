package main

import "github.com/ValentinKolb/objectis/cmd"

func main() {
	cmd.Execute()
}
