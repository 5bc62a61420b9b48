package main

import "github.com/MeKo-Tech/staticstitch/internal/cmd"

func main() {
	cmd.Execute()
}
