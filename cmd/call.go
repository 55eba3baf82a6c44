package main

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/fieldops/internal/agent"
)

var callCmd = &cobra.Command{
	Use:   "call <function> [key=value ...]",
	Short: "Invoke an agent function directly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		return runFunction(cmd, args[0], params)
	},
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the agent functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		d := agent.NewDispatcher(&agent.Services{})
		for _, name := range d.Functions() {
			if _, err := io.WriteString(cmd.OutOrStdout(), name+"\n"); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd, functionsCmd)
}

func parseAssignments(args []string) (agent.Params, error) {
	p := agent.Params{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, eris.Errorf("invalid argument %q: want key=value", a)
		}
		p[strings.TrimSpace(k)] = v
	}
	return p, nil
}

// flagParams maps every flag the user set onto a parameter, with dashes in
// the flag name turned into underscores.
func flagParams(cmd *cobra.Command) agent.Params {
	p := agent.Params{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		p[strings.ReplaceAll(f.Name, "-", "_")] = f.Value.String()
	})
	return p
}

// runFunction calls function through the dispatcher and prints the
// response. A failed call prints the response and exits non-zero.
func runFunction(cmd *cobra.Command, function string, params agent.Params) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := initEnv(ctx, "engine")
	if err != nil {
		return err
	}
	defer e.Close()

	resp := agent.NewDispatcher(e.Services).Call(ctx, function, params)
	if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !resp.Success {
		return eris.Errorf("%s failed: %s", function, resp.Error.Message)
	}
	return nil
}

type flagDef struct {
	name  string
	usage string
}

// functionCmd builds a subcommand whose string flags become the parameters
// of one agent function.
func functionCmd(use, short, function string, flags ...flagDef) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunction(cmd, function, flagParams(cmd))
		},
	}
	for _, f := range flags {
		c.Flags().String(f.name, "", f.usage)
	}
	return c
}
