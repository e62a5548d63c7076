// Package main provides the vmap engine CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/vmap-ml/vmap/batch"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("vmap %s\n", version)
			return
		case "rules":
			names := batch.RegisteredRules()
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return
		}
	}

	fmt.Println("vmap - Batched Tensor Transforms for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  rules      List operators with a dedicated batching rule")
}
