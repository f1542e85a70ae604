package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/pkg/log"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/legacy"
)

// CompileOptions holds options for the compile and encode commands.
type CompileOptions struct {
	Out        string
	Compressed bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <tree.json>",
		Short: "Compile a JSON tree into an opcode script",
		Example: `  # Print the script
  treepredict compile stump.json

  # Write a compressed payload
  treepredict compile stump.json --compressed -o stump.opz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Write the payload to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Compressed, "compressed", false, "Emit a compressed payload")

	return cmd
}

func runCompile(cmd *cobra.Command, path string, opts *CompileOptions) error {
	cfg := getConfig(cmd)
	t, err := tree.LoadJSON(path)
	if err != nil {
		return err
	}
	script, err := t.Compile(cfg.SeparatorByte())
	if err != nil {
		return err
	}

	payload := []byte(script)
	if opts.Compressed {
		if payload, err = model.Compress(payload); err != nil {
			return err
		}
	}
	log.GetLoggerWithName("cli").Debug("Tree compiled",
		log.OperationKey, log.OperationCompile,
		log.TaskKey, t.Task.String(),
		log.DepthKey, tree.Depth(t.Root),
		log.PayloadBytesKey, len(payload),
	)
	return writePayload(cmd, opts.Out, payload)
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "encode <tree.json>",
		Short: "Encode a JSON tree in the legacy binary format",
		Example: `  treepredict encode stump.json -o stump.leg
  treepredict encode stump.json --compressed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Write the payload to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Compressed, "compressed", false, "Emit a compressed payload")

	return cmd
}

func runEncode(cmd *cobra.Command, path string, opts *CompileOptions) error {
	t, err := tree.LoadJSON(path)
	if err != nil {
		return err
	}
	root, err := legacy.FromTree(t)
	if err != nil {
		return err
	}

	var payload []byte
	if opts.Compressed {
		raw, err := legacy.Encode(root, t.Task)
		if err != nil {
			return err
		}
		if payload, err = model.Compress(raw); err != nil {
			return err
		}
	} else {
		text, err := legacy.EncodeText(root, t.Task)
		if err != nil {
			return err
		}
		payload = []byte(text)
	}
	log.GetLoggerWithName("cli").Debug("Tree encoded",
		log.OperationKey, log.OperationEncode,
		log.NodesKey, legacy.Inspect(root).Nodes,
		log.PayloadBytesKey, len(payload),
	)
	return writePayload(cmd, opts.Out, payload)
}

func writePayload(cmd *cobra.Command, out string, payload []byte) error {
	if out != "" {
		return model.SavePayload(out, payload)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return err
}
