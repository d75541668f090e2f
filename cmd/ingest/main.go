// Command ingest loads CSV or HTML table files into new Dataset Stores and
// prints one dataset record per file as a JSON array.
//
//	ingest -config tabular.yaml sales.csv report.html
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"tabular/internal/app"
	"tabular/internal/ingest"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath   = fs.String("config", "", "config file (JSON or YAML); TABULAR_* env vars override")
		delimiter = fs.String("delimiter", "", "CSV delimiter (overrides ingest.delimiter)")
		encoding  = fs.String("encoding", "", "input encoding label, e.g. windows-1250 (overrides ingest.encoding)")
		verbose   = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return app.ExitInvalid
	}

	env, err := app.Setup(ctx, app.Options{ConfigPath: *cfgPath, Verbose: *verbose, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return app.ExitCode(err)
	}
	defer env.Close()

	if fs.NArg() == 0 {
		err := app.Usagef("no input files")
		env.Log.Error(err)
		return app.ExitCode(err)
	}

	if *delimiter != "" {
		env.Config.Ingest.Delimiter = *delimiter
	}
	if *encoding != "" {
		env.Config.Ingest.Encoding = *encoding
	}

	in := &ingest.Ingester{
		Stores:     env.Stores,
		Logger:     env.Log,
		SampleRows: env.Config.Inference.SampleRows,
		CSV: ingest.CSVOptions{
			Delimiter: env.Config.Delimiter(),
			Encoding:  env.Config.Ingest.Encoding,
		},
	}

	out := make([]ingest.Dataset, 0, fs.NArg())
	for _, path := range fs.Args() {
		ds, err := ingestFile(ctx, in, path)
		if err != nil {
			env.Log.WithField("file", path).WithError(err).Error("ingest failed")
			rollback(env, out)
			return app.ExitCode(err)
		}
		env.Log.WithFields(logrus.Fields{
			"file":    path,
			"store":   ds.StoreID,
			"rows":    ds.RowCount,
			"skipped": ds.Skipped,
		}).Info("dataset created")
		out = append(out, ds)
	}

	if err := app.WriteJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "ingest: write output: %v\n", err)
		return app.ExitFailure
	}
	return app.ExitOK
}

// rollback removes the stores created earlier in the same run so a failed
// invocation leaves no unreported stores behind.
func rollback(env *app.Env, created []ingest.Dataset) {
	for _, ds := range created {
		if err := env.Stores.Remove(ds.StoreID); err != nil {
			env.Log.WithField("store", ds.StoreID).WithError(err).Warn("rollback failed")
			continue
		}
		env.Log.WithField("store", ds.StoreID).Info("rolled back")
	}
}

func ingestFile(ctx context.Context, in *ingest.Ingester, path string) (ingest.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Dataset{}, err
	}
	defer f.Close()
	return in.IngestFile(ctx, path, f)
}
