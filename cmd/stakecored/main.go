package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Launch(os.Args); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
		return
	}
}
