// Command qftbench synthesizes the quantum Fourier transform with both the
// unconstrained and the Clifford+T strategy and compares the results.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aristath/synthbench/internal/cliapp"
	"github.com/aristath/synthbench/internal/di"
	"github.com/aristath/synthbench/internal/modules/target"
)

const entry = "qftbench"

func newApp() *cli.App {
	return &cli.App{
		Name:      entry,
		Usage:     "benchmark QFT synthesis with and without a fault-tolerant gate set",
		ArgsUsage: "<precision>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "num_qubits",
				Value: 2,
				Usage: "size of the Fourier transform",
			},
		}, cliapp.Flags(cliapp.FlagDefaults{Report: true})...),
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cliapp.UsageError("expected exactly one argument: <precision>")
	}
	precision, err := cliapp.ParsePrecision(c.Args().First())
	if err != nil {
		return err
	}
	n := c.Int("num_qubits")
	if n < 1 {
		return cliapp.UsageError("--num_qubits must be at least 1, got %d", n)
	}

	return cliapp.Execute(c, cliapp.Job{
		Entry:     entry,
		Precision: precision,
		Problem: func(container *di.Container) (*target.Problem, error) {
			return target.NewQFTProblem(container.Engine, n)
		},
	})
}

func main() {
	os.Exit(cliapp.Main(newApp(), os.Args))
}
