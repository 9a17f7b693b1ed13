// Package main provides the pond CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "version":
		fmt.Printf("pond %s\n", version)
	case "train":
		runTrain(args)
	case "eval":
		runEval(args)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("pond - neural network training on secret-shared tensors")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  train      Train a model on MNIST (or synthetic digits)")
	fmt.Println("  eval       Evaluate a checkpoint on the test set")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'pond <command> -h' for the command's flags.")
}
