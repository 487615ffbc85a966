package main

import "github.com/ValentinKolb/itemstore/cmd"

func main() {
	cmd.Execute()
}
