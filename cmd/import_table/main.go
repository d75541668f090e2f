// Command import_table copies a table from an external database into a new
// Dataset Store.
//
//	import_table -source warehouse -list
//	import_table -source warehouse -table orders -limit 5000
//	import_table -kind sqlite -dsn ./legacy.db -table customers
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"tabular/internal/app"
	"tabular/internal/ingest"
	"tabular/internal/source"

	// register every import backend with the source factory.
	_ "tabular/internal/source/all"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import_table", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath = fs.String("config", "", "config file (JSON or YAML); TABULAR_* env vars override")
		srcName = fs.String("source", "", "named source from the config (sources.<name>)")
		kind    = fs.String("kind", "", "source kind when not using -source: "+strings.Join(source.Kinds(), ", "))
		dsn     = fs.String("dsn", "", "source DSN when not using -source")
		table   = fs.String("table", "", "table to import")
		limit   = fs.Int("limit", 0, "max rows to import (default import.row_limit)")
		list    = fs.Bool("list", false, "list importable tables and exit")
		verbose = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return app.ExitInvalid
	}

	env, err := app.Setup(ctx, app.Options{ConfigPath: *cfgPath, Verbose: *verbose, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "import_table: %v\n", err)
		return app.ExitCode(err)
	}
	defer env.Close()

	cfg, err := sourceConfig(env, *srcName, *kind, *dsn)
	if err != nil {
		env.Log.Error(err)
		return app.ExitCode(err)
	}
	log := env.Log.WithFields(logrus.Fields{"kind": cfg.Kind, "table": *table})

	src, err := source.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("open source")
		return app.ExitFailure
	}
	defer src.Close()

	var out any
	switch {
	case *list:
		out, err = src.ListTables(ctx)
	case strings.TrimSpace(*table) == "":
		err = app.Usagef("-table or -list is required")
	default:
		n := *limit
		if n <= 0 {
			n = env.Config.Import.RowLimit
		}
		in := &ingest.Ingester{
			Stores:     env.Stores,
			Logger:     env.Log,
			SampleRows: env.Config.Inference.SampleRows,
		}
		out, err = in.ImportTable(ctx, src, cfg.Kind, *table, n)
	}
	if err != nil {
		log.WithError(err).Error("import failed")
		return app.ExitCode(err)
	}

	if err := app.WriteJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "import_table: write output: %v\n", err)
		return app.ExitFailure
	}
	return app.ExitOK
}

// sourceConfig resolves -source against the config file, or uses -kind and
// -dsn directly.
func sourceConfig(env *app.Env, name, kind, dsn string) (source.Config, error) {
	if name != "" {
		s, ok := env.Config.Sources[strings.ToLower(name)]
		if !ok {
			return source.Config{}, app.Usagef("source %q is not configured", name)
		}
		return source.Config{Kind: s.Kind, DSN: s.DSN}, nil
	}
	if kind == "" || dsn == "" {
		return source.Config{}, app.Usagef("either -source or both -kind and -dsn are required")
	}
	return source.Config{Kind: kind, DSN: dsn}, nil
}
