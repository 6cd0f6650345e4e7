package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/multirunner/internal/escape"
)

// CreateEscapeCmd creates the escape command.
func CreateEscapeCmd() *cobra.Command {
	var platform string
	var command bool
	var script string

	cmd := &cobra.Command{
		Use:   "escape [flags] PROGRAM [ARG...]",
		Short: "Print the command line a pool would launch",
		Long: `Escapes a program and its arguments into one command line for the given platform. ` +
			`With --script, PROGRAM is the interpreter and the remaining arguments go to the script. ` +
			`With --command, the arguments are joined and escaped for the platform's command interpreter instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := escape.Default()
			if platform != "" {
				var ok bool
				if p, ok = escape.ByName(platform); !ok {
					return fmt.Errorf("unknown platform %q (want posix or windows)", platform)
				}
			}

			line, err := escapeLine(p, command, script, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Target platform: posix or windows (default: this platform)")
	cmd.Flags().BoolVar(&command, "command", false, "Escape the joined arguments for the command interpreter")
	cmd.Flags().StringVar(&script, "script", "", "Script run by PROGRAM as interpreter")

	return cmd
}

func escapeLine(p escape.Policy, command bool, script string, args []string) (string, error) {
	if command {
		return p.Command(strings.Join(args, " "))
	}
	if script != "" {
		return escape.CommandLine(p, args[0], nil, script, args[1:])
	}
	return escape.CommandLine(p, args[0], args[1:], "", nil)
}
