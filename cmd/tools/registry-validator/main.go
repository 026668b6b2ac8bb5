// cmd/tools/registry-validator/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"subtrack-notifier/pkg/registry"
)

func main() {
	path := flag.String("path", "configs/template-registry.json", "Path to template registry file")
	flag.Parse()

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		fmt.Printf("Registry validation failed: %v\n", err)
		os.Exit(1)
	}

	// Spot-check a cell that must always resolve after defaults are merged.
	if _, ok := reg.Lookup("license", "reminder", "owner"); !ok {
		fmt.Println("Registry validation failed: license/reminder/owner template missing")
		os.Exit(1)
	}

	fmt.Printf("Registry %s is valid\n", *path)
}
