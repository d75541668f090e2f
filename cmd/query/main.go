// Command query runs a read-only SQL query against one Dataset Store and
// prints the result as JSON.
//
//	query -store ds_1700000000000_ab12cd34_sales -sql 'SELECT region, SUM(sales) FROM data GROUP BY region'
//	echo 'SELECT * FROM data' | query -store ds_... -sql -
//	query -list
//	query -store ds_... -columns
//	query -store ds_... -sample 5
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
	"tabular/internal/sandbox"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath = fs.String("config", "", "config file (JSON or YAML); TABULAR_* env vars override")
		storeID = fs.String("store", "", "dataset store id")
		sqlText = fs.String("sql", "", "SELECT statement, or - to read it from stdin")
		list    = fs.Bool("list", false, "list store ids and exit")
		columns = fs.Bool("columns", false, "print the physical column names of -store")
		sample  = fs.Int("sample", 0, "print the first N rows of -store")
		verbose = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return app.ExitInvalid
	}

	env, err := app.Setup(ctx, app.Options{ConfigPath: *cfgPath, Verbose: *verbose, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "query: %v\n", err)
		return app.ExitCode(err)
	}
	defer env.Close()

	out, err := dispatch(ctx, env, *storeID, *sqlText, *list, *columns, *sample, stdin)
	if err != nil {
		env.Log.WithFields(logrus.Fields{"store": *storeID}).WithError(err).Error("query failed")
		return app.ExitCode(err)
	}
	if err := app.WriteJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "query: write output: %v\n", err)
		return app.ExitFailure
	}
	return app.ExitOK
}

func dispatch(ctx context.Context, env *app.Env, id, sqlText string, list, columns bool, sample int, stdin io.Reader) (any, error) {
	if list {
		ids, err := env.Stores.List()
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []string{}
		}
		return ids, nil
	}

	if strings.TrimSpace(id) == "" {
		return nil, app.Usagef("-store is required")
	}

	switch {
	case columns:
		return env.Stores.Columns(ctx, id)
	case sample > 0:
		return env.Stores.SampleRows(ctx, id, sample)
	}

	if sqlText == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		sqlText = string(b)
	}

	sb := sandbox.New(env.Stores, env.Config.Query.RowLimit)
	env.Log.WithField("store", id).Debugf("query: %s", sqlText)
	return sb.Run(ctx, id, sqlText)
}
