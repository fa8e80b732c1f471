package main

import (
	"fmt"
	"os"

	"github.com/BerryBytes/awsorgctl/cmd/root"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
