// services/sitemodel/main.go
package main

import (
	"os"

	"example.com/backstage/services/sitemodel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
