// Command rvsim is a cycle-level RV32I pipeline simulator.
//
// Usage:
//
//	rvsim run [flags] <program>     run a program to completion
//	rvsim debug [flags] <program>   step a program interactively
//	rvsim bench [flags]             run the timing microbenchmarks
//	rvsim config [flags]            print or save the machine configuration
//
// A program is either a flat little-endian binary loaded at address 0 or a
// 32-bit RISC-V ELF executable.
package main

import (
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	atexit.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
