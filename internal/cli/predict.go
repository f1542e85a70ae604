package cli

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/treepredict"
)

// ModelOptions selects a model payload on disk.
type ModelOptions struct {
	Path string
	Type model.ModelType
	ID   string
}

func (o *ModelOptions) register(cmd *cobra.Command) {
	o.Type = model.Opcode
	cmd.Flags().StringVarP(&o.Path, "model", "m", "", "Path to the model payload")
	cmd.Flags().VarP(&o.Type, "type", "t", "Model type (opcode|legacy|opcode_compressed|legacy_compressed or numeric id)")
	cmd.Flags().StringVar(&o.ID, "id", "", "Model identifier (default: file name)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"opcode", "legacy", "opcode_compressed", "legacy_compressed"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func (o *ModelOptions) load() (id string, payload []byte, err error) {
	payload, err = model.LoadPayload(o.Path)
	if err != nil {
		return "", nil, err
	}
	id = o.ID
	if id == "" {
		id = filepath.Base(o.Path)
	}
	return id, payload, nil
}

// PredictOptions holds options for the predict command.
type PredictOptions struct {
	ModelOptions
	Features       string
	Input          string
	Classification bool
}

// NewPredictCommand creates the predict command.
func NewPredictCommand() *cobra.Command {
	opts := &PredictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Evaluate a feature vector or a CSV of rows",
		Example: `  # One sparse vector, classification
  treepredict predict -m stump.op --features 0:1.5,3:2 --classification

  # Every row of a CSV file (empty cells are missing features)
  treepredict predict -m stump.leg -t legacy --input rows.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.Features, "features", "f", "", "Sparse features as index:value pairs separated by commas")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "CSV file with one dense row per line")
	cmd.Flags().BoolVarP(&opts.Classification, "classification", "c", false, "Expect a class index instead of a value")
	cmd.MarkFlagsMutuallyExclusive("features", "input")

	return cmd
}

func runPredict(cmd *cobra.Command, opts *PredictOptions) error {
	cfg := getConfig(cmd)
	id, payload, err := opts.load()
	if err != nil {
		return err
	}
	ev := treepredict.NewEvaluator(cfg.Options()...)

	if opts.Input != "" {
		X, err := readRows(opts.Input)
		if err != nil {
			return err
		}
		y, err := ev.PredictBatch(cmd.Context(), id, opts.Type, payload, X, opts.Classification)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i := 0; i < y.Len(); i++ {
			if opts.Classification {
				fmt.Fprintln(out, int(y.AtVec(i)))
			} else {
				fmt.Fprintln(out, strconv.FormatFloat(y.AtVec(i), 'g', -1, 64))
			}
		}
		return nil
	}

	v, err := ParseFeatures(opts.Features)
	if err != nil {
		return err
	}
	p, err := ev.Predict(cmd.Context(), id, opts.Type, payload, v, opts.Classification)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
	return err
}

// ParseFeatures parses "0:1.5,3:2" into a sparse vector. An empty string is
// the empty vector.
func ParseFeatures(s string) (*vector.SparseVector, error) {
	v := vector.NewSparse()
	s = strings.TrimSpace(s)
	if s == "" {
		return v, nil
	}
	for _, pair := range strings.Split(s, ",") {
		idx, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, errors.NewValidationError("features", "expected index:value", pair)
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 {
			return nil, errors.NewValidationError("features", "index must be a non-negative integer", idx)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, errors.NewValidationError("features", "value must be a number", val)
		}
		v.Set(i, f)
	}
	return v, nil
}

// readRows loads a headerless CSV into a matrix. Rows may be ragged; short
// rows and empty cells become NaN, which evaluates as a missing feature.
func readRows(path string) (*mat.Dense, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(records) == 0 {
		return nil, errors.NewValidationError("input", "no rows", path)
	}

	cols := 0
	for _, rec := range records {
		cols = max(cols, len(rec))
	}
	X := mat.NewDense(len(records), max(cols, 1), nil)
	for i, rec := range records {
		for j := 0; j < cols; j++ {
			x := math.NaN()
			if j < len(rec) && rec[j] != "" {
				if x, err = strconv.ParseFloat(rec[j], 64); err != nil {
					return nil, errors.NewValidationError("input", fmt.Sprintf("row %d column %d is not a number", i+1, j+1), rec[j])
				}
			}
			X.Set(i, j, x)
		}
	}
	return X, nil
}
