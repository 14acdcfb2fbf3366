// Command qasmbench loads an OpenQASM circuit and resynthesizes it with both
// the unconstrained and the Clifford+T strategy, timing each branch.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aristath/synthbench/internal/cliapp"
	"github.com/aristath/synthbench/internal/di"
	"github.com/aristath/synthbench/internal/modules/target"
)

const entry = "qasmbench"

func newApp() *cli.App {
	return &cli.App{
		Name:      entry,
		Usage:     "benchmark resynthesis of a QASM circuit with and without a fault-tolerant gate set",
		ArgsUsage: "<qasm_file> <precision>",
		Flags:     cliapp.Flags(cliapp.FlagDefaults{Timing: true}),
		Action:    run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 2 {
		return cliapp.UsageError("expected two arguments: <qasm_file> <precision>")
	}
	path := c.Args().Get(0)
	precision, err := cliapp.ParsePrecision(c.Args().Get(1))
	if err != nil {
		return err
	}

	return cliapp.Execute(c, cliapp.Job{
		Entry:     entry,
		Precision: precision,
		Problem: func(container *di.Container) (*target.Problem, error) {
			return target.FromFile(container.Engine, path)
		},
	})
}

func main() {
	os.Exit(cliapp.Main(newApp(), os.Args))
}
