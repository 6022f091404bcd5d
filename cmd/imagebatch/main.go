package main

import "github.com/dbsmedya/imagebatch/cmd/imagebatch/cmd"

func main() {
	cmd.Execute()
}
