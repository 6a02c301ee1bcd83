package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gp2c/pkg/gp2c"
	"gp2c/pkg/runtime"
)

func newRunCmd(globals *globalFlags) *cobra.Command {
	backend := string(gp2c.BackendDelta)
	var seed uint64

	cmd := &cobra.Command{
		Use:   "run <program.yaml> <host.yaml>",
		Short: "Execute a program against a host graph with the reference executor",
		Long: "Execute a program in process. Every rule must name a built-in action\n" +
			"(addNode, deleteNode[:prefix], hasNode[:prefix], link, unlink, loop).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := globals.logger(cmd.ErrOrStderr())

			prog, err := loadProgram(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			host, err := runtime.LoadHost(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			g, err := gp2c.New(gp2c.Options{Backend: gp2c.BackendKind(backend)}, logger)
			if err != nil {
				return err
			}
			block, err := g.Lower(prog.Main)
			if err != nil {
				return err
			}
			rules, err := runtime.Bind(prog, nil)
			if err != nil {
				return err
			}

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			x, err := runtime.NewExecutor(runtime.Config{
				Backend: g.Backend().Kind(),
				Rules:   rules,
				Seed:    seed,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			res, err := x.Run(cmd.Context(), block, host)
			if err != nil {
				return err
			}
			logger.Debug("finished", "checkpoint-ops", len(res.Trace), "seed", seed)

			if res.Failed() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Graph.String())
			return err
		},
	}

	cmd.Flags().StringVar(&backend, "backend", backend, "backtracking backend (delta | snapshot)")
	cmd.Flags().Uint64VarP(&seed, "seed", "s", 0, "seed for random choices (0 picks one from the clock)")
	return cmd
}
