// Command treepredict compiles, encodes and evaluates decision trees.
package main

import (
	"os"

	"github.com/YuminosukeSato/treepredict/internal/cli"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

func main() {
	if err := errors.SafeExecute("treepredict", cli.Execute); err != nil {
		os.Exit(1)
	}
}
