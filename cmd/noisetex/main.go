package main

import "github.com/MeKo-Tech/noisetex/internal/cmd"

func main() {
	cmd.Execute()
}
