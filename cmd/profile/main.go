// Command profile prints column statistics for a Dataset Store: a JSON
// report by default, or the plain-text dataset summary with -describe.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tabular/internal/app"
	"tabular/internal/profile"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath  = fs.String("config", "", "config file (JSON or YAML); TABULAR_* env vars override")
		storeID  = fs.String("store", "", "dataset store id")
		describe = fs.Bool("describe", false, "print the plain-text dataset summary instead of JSON")
		verbose  = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return app.ExitInvalid
	}

	env, err := app.Setup(ctx, app.Options{ConfigPath: *cfgPath, Verbose: *verbose, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "profile: %v\n", err)
		return app.ExitCode(err)
	}
	defer env.Close()

	if strings.TrimSpace(*storeID) == "" {
		err := app.Usagef("-store is required")
		env.Log.Error(err)
		return app.ExitCode(err)
	}

	r, err := profile.Build(ctx, env.Stores, *storeID, profile.Options{
		SampleRows: env.Config.Profile.SampleRows,
		TopValues:  env.Config.Profile.TopValues,
	})
	if err != nil {
		env.Log.WithField("store", *storeID).WithError(err).Error("profile failed")
		return app.ExitCode(err)
	}

	if *describe {
		fmt.Fprintln(stdout, profile.Describe(r, profile.Descriptors(r), int(r.RowCount)))
		return app.ExitOK
	}
	if err := app.WriteJSON(stdout, r); err != nil {
		fmt.Fprintf(stderr, "profile: write output: %v\n", err)
		return app.ExitFailure
	}
	return app.ExitOK
}
