package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"testing"

	"tabular/internal/app"
	"tabular/internal/sandbox"
	"tabular/internal/schema"
	"tabular/internal/store"
)

// TestHelperProcess is the subprocess entrypoint used by runCmd. Arguments
// after a literal "--" become the command's os.Args.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	i := 0
	for ; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
	}
	if i < len(args) {
		os.Args = append([]string{args[0]}, args[i+1:]...)
	} else {
		os.Args = []string{args[0]}
	}

	main()
	os.Exit(0)
}

// runCmd executes main() in a subprocess with TABULAR_DATA_DIR=dataDir and
// returns stdout, stderr and the exit code.
func runCmd(t *testing.T, dataDir string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmdArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "TABULAR_DATA_DIR="+dataDir)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err == nil {
		return outBuf.String(), errBuf.String(), 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return outBuf.String(), errBuf.String(), ee.ExitCode()
	}
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

func seedStore(t *testing.T) (dataDir, id string) {
	t.Helper()
	dataDir = t.TempDir()
	m, err := store.NewManager(store.Options{BaseDir: dataDir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	headers := []string{"Region", "Sales"}
	rows := [][]string{{"East", "100"}, {"West", "250"}}
	got, err := m.Create(context.Background(), "sales", headers, rows, schema.Infer(headers, rows))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return dataDir, got.StoreID
}

func TestMain_QueryPrintsJSON(t *testing.T) {
	t.Parallel()
	dataDir, id := seedStore(t)

	stdout, stderr, code := runCmd(t, dataDir, "-store", id, "-sql", "SELECT region, sales FROM data ORDER BY id")
	if code != 0 {
		t.Fatalf("exit=%d\nstderr:\n%s", code, stderr)
	}

	var res sandbox.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode stdout: %v\n%s", err, stdout)
	}
	if len(res.Rows) != 2 || res.Rows[0]["region"] != "East" || res.Rows[1]["sales"] != 250.0 {
		t.Fatalf("result=%+v", res)
	}
	if strings.Join(res.Columns, ",") != "region,sales" {
		t.Fatalf("columns=%v", res.Columns)
	}
}

func TestMain_ExitCodes(t *testing.T) {
	t.Parallel()
	dataDir, id := seedStore(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"forbidden", []string{"-store", id, "-sql", "DROP TABLE data"}, app.ExitInvalid},
		{"empty sql", []string{"-store", id, "-sql", "  "}, app.ExitInvalid},
		{"missing store flag", []string{"-sql", "SELECT 1"}, app.ExitInvalid},
		{"unknown store", []string{"-store", "ds_gone", "-sql", "SELECT * FROM data"}, app.ExitNotFound},
		{"bad column", []string{"-store", id, "-sql", "SELECT nope FROM data"}, app.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, stderr, code := runCmd(t, dataDir, tt.args...)
			if code != tt.want {
				t.Fatalf("exit=%d, want %d\nstderr:\n%s", code, tt.want, stderr)
			}
		})
	}
}

func TestRun_ListColumnsSampleAndStdin(t *testing.T) {
	dataDir, id := seedStore(t)
	t.Setenv("TABULAR_DATA_DIR", dataDir)
	ctx := context.Background()

	var out, errb bytes.Buffer
	if code := run(ctx, []string{"-list"}, nil, &out, &errb); code != 0 {
		t.Fatalf("list exit=%d: %s", code, errb.String())
	}
	var ids []string
	if err := json.Unmarshal(out.Bytes(), &ids); err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("ids=%v err=%v", ids, err)
	}

	out.Reset()
	if code := run(ctx, []string{"-store", id, "-columns"}, nil, &out, &errb); code != 0 {
		t.Fatalf("columns exit=%d: %s", code, errb.String())
	}
	var cols []string
	if err := json.Unmarshal(out.Bytes(), &cols); err != nil || strings.Join(cols, ",") != "region,sales" {
		t.Fatalf("cols=%v err=%v", cols, err)
	}

	out.Reset()
	if code := run(ctx, []string{"-store", id, "-sample", "1"}, nil, &out, &errb); code != 0 {
		t.Fatalf("sample exit=%d: %s", code, errb.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil || len(rows) != 1 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}

	out.Reset()
	stdin := strings.NewReader("SELECT COUNT(*) AS n FROM data;\n")
	if code := run(ctx, []string{"-store", id, "-sql", "-"}, stdin, &out, &errb); code != 0 {
		t.Fatalf("stdin exit=%d: %s", code, errb.String())
	}
	if !strings.Contains(out.String(), `"n": 2`) {
		t.Fatalf("stdout=%s", out.String())
	}
}
