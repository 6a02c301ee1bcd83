package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"gp2c/pkg/gp2c"
	"gp2c/pkg/program"
)

const appName = "gp2c"

type negBoolBinding struct {
	target *bool
	neg    *bool
}

func addBoolPair(cmd *cobra.Command, bindings *[]negBoolBinding, target *bool, name string, usage string) {
	neg := new(bool)
	cmd.Flags().BoolVar(target, name, *target, usage)
	cmd.Flags().BoolVar(neg, "no-"+name, false, "disable "+name)
	*bindings = append(*bindings, negBoolBinding{target: target, neg: neg})
}

type globalFlags struct {
	debug bool
	quiet bool
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	level := LogLevelWarn
	if g.debug {
		level = LogLevelDebug
	}
	if g.quiet {
		level = LogLevelSilent
	}
	return NewLogger(w, level)
}

func NewRootCmd() *cobra.Command {
	opts := gp2c.Defaults()
	globals := &globalFlags{}
	outputPath := ""
	comments := true
	dumpTree := false
	negBindings := make([]negBoolBinding, 0, 1)

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
	}

	cmd := &cobra.Command{
		Use:           appName + " <program.yaml>",
		Short:         "Compile a GP 2 program into the C runtime main function",
		Version:       version.GetVersionInfo().GitVersion,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := globals.logger(cmd.ErrOrStderr())

			prog, err := loadProgram(cmd, args[0])
			if err != nil {
				return err
			}
			if dumpTree {
				if _, err := fmt.Fprint(cmd.ErrOrStderr(), program.Dump(prog.Main)); err != nil {
					return err
				}
			}

			opts.Concise = !comments
			logger.Debug("generating", "backend", opts.Backend, "rules", len(prog.Rules), "procedures", len(prog.Procedures))
			out, err := gp2c.Generate(prog, opts, logger)
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return os.WriteFile(outputPath, []byte(out), 0o644)
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "set log level to debug")
	cmd.PersistentFlags().BoolVarP(&globals.quiet, "quiet", "q", false, "suppress warnings")

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write generated C code to file")
	cmd.Flags().StringVar((*string)(&opts.Backend), "backend", string(opts.Backend), "backtracking backend (delta | snapshot)")
	cmd.Flags().IntVar(&opts.HostNodeSize, "host-node-size", opts.HostNodeSize, "initial node capacity of the host graph")
	cmd.Flags().IntVar(&opts.HostEdgeSize, "host-edge-size", opts.HostEdgeSize, "initial edge capacity of the host graph")
	cmd.Flags().StringVar(&opts.OutputFile, "output-file", opts.OutputFile, "file the generated program writes its result to")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", opts.LogFile, "file the generated program logs to")
	cmd.Flags().BoolVar(&dumpTree, "dump-tree", false, "print the resolved command tree to stderr")
	addBoolPair(cmd, &negBindings, &comments, "comments", "annotate generated code with construct comments")

	_ = cmd.MarkFlagFilename("output", "c")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for _, b := range negBindings {
			if *b.neg {
				*b.target = false
			}
		}
	}

	cmd.AddCommand(newRunCmd(globals))
	return cmd
}

func loadProgram(cmd *cobra.Command, path string) (*program.Program, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	prog, err := program.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
