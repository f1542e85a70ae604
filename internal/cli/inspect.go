package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/treepredict/sklearn/tree/treepredict"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &ModelOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a disassembly or summary of a model payload",
		Example: `  treepredict inspect -m stump.op
  treepredict inspect -m stump.leg -t legacy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd)
			id, payload, err := opts.load()
			if err != nil {
				return err
			}
			h, err := treepredict.NewEvaluator(cfg.Options()...).Handle(id, opts.Type, payload)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), h.Describe())
			return err
		},
	}

	opts.register(cmd)
	return cmd
}
