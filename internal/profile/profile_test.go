package profile

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"tabular/internal/schema"
	"tabular/internal/store"
)

func newStore(t *testing.T, headers []string, rows [][]string) (*store.Manager, string, []schema.Column) {
	t.Helper()
	m, err := store.NewManager(store.Options{
		BaseDir:  t.TempDir(),
		Now:      func() time.Time { return time.UnixMilli(1700000000000) },
		NewToken: func(time.Time) string { return "tok" },
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cols := schema.Infer(headers, rows)
	got, err := m.Create(context.Background(), "profile", headers, rows, cols)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m, got.StoreID, cols
}

func TestColumns_NumericWithNull(t *testing.T) {
	t.Parallel()
	m, id, _ := newStore(t, []string{"n"}, [][]string{{"1"}, {"2"}, {"3"}, {""}})

	stats, err := Columns(context.Background(), m, id)
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	s, ok := stats["n"]
	if !ok {
		t.Fatalf("no stats for n: %v", stats)
	}
	if s.Type != TypeNumeric {
		t.Fatalf("Type=%q", s.Type)
	}
	if *s.Min != 1 || *s.Max != 3 || *s.Avg != 2 || *s.Sum != 6 || s.Count != 3 {
		t.Fatalf("summary=%+v min=%v max=%v avg=%v sum=%v", s, *s.Min, *s.Max, *s.Avg, *s.Sum)
	}
	if _, ok := stats["id"]; ok {
		t.Fatalf("row-id column must not be profiled")
	}
}

func TestColumns_Text(t *testing.T) {
	t.Parallel()
	m, id, _ := newStore(t, []string{"c"}, [][]string{{"a"}, {"a"}, {"b"}, {""}})

	stats, err := Columns(context.Background(), m, id)
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	s := stats["c"]
	if s.Type != TypeText || s.DistinctCount != 2 || s.Count != 3 {
		t.Fatalf("summary=%+v", s)
	}
	want := []ValueCount{{Value: "a", Count: 2}, {Value: "b", Count: 1}}
	if !reflect.DeepEqual(s.TopValues, want) {
		t.Fatalf("TopValues=%+v, want %+v", s.TopValues, want)
	}
}

func TestColumns_TopValuesBounded(t *testing.T) {
	t.Parallel()
	var rows [][]string
	for i := 0; i < 15; i++ {
		v := string(rune('a' + i))
		for j := 0; j <= i; j++ {
			rows = append(rows, []string{v})
		}
	}
	m, id, _ := newStore(t, []string{"letter"}, rows)

	stats, err := Columns(context.Background(), m, id)
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	top := stats["letter"].TopValues
	if len(top) != DefaultTopValues {
		t.Fatalf("len(TopValues)=%d, want %d", len(top), DefaultTopValues)
	}
	if top[0].Value != "o" || top[0].Count != 15 {
		t.Fatalf("top[0]=%+v", top[0])
	}
	for i := 1; i < len(top); i++ {
		if top[i].Count > top[i-1].Count {
			t.Fatalf("not descending at %d: %+v", i, top)
		}
	}
}

func TestColumns_AllNullNumeric(t *testing.T) {
	t.Parallel()
	m, id, _ := newStore(t, []string{"n", "label"}, [][]string{{"1", "x"}})
	// A second store where n only holds a failed coercion.
	cols := []schema.Column{{Name: "n", Type: schema.Numeric}, {Name: "label", Type: schema.Text}}
	got, err := m.Create(context.Background(), "nulls", []string{"n", "label"}, [][]string{{"n/a", "y"}}, cols)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stats, err := Columns(context.Background(), m, got.StoreID)
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	s := stats["n"]
	if s.Count != 0 || s.Min != nil || s.Sum != nil {
		t.Fatalf("summary=%+v, want empty numeric", s)
	}
	if _, err := Columns(context.Background(), m, id); err != nil {
		t.Fatalf("Columns first store: %v", err)
	}
}

func TestBuildAndDescribe(t *testing.T) {
	t.Parallel()
	headers := []string{"Region", "Sales"}
	rows := [][]string{{"East", "100"}, {"West", "250"}, {"East", "50"}, {"North", "1,000"}}
	m, id, cols := newStore(t, headers, rows)

	r, err := Build(context.Background(), m, id, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(r.Columns, []string{"region", "sales"}) {
		t.Fatalf("Columns=%v", r.Columns)
	}
	if r.RowCount != 4 {
		t.Fatalf("RowCount=%d", r.RowCount)
	}
	if len(r.Sample) != DefaultSampleRows {
		t.Fatalf("len(Sample)=%d", len(r.Sample))
	}
	if r.Sample[0]["region"] != "East" || r.Sample[0]["sales"] != 100.0 {
		t.Fatalf("Sample[0]=%v", r.Sample[0])
	}

	text := Describe(r, cols, len(rows))
	if rebuilt := Describe(r, Descriptors(r), int(r.RowCount)); rebuilt != text {
		t.Fatalf("Descriptors round trip differs:\n%s\n---\n%s", rebuilt, text)
	}
	for _, want := range []string{
		`Dataset has 4 rows and the following columns in the SQLite table "data":`,
		`- "region" (text) | 3 unique values, top: East(2), North(1), West(1)`,
		`- "sales" (numeric) | min: 50, max: 1000, avg: 350.00, sum: 1400.00`,
		"Sample rows:\n[\n  {",
		`Actual column names in SQLite: "region", "sales"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("Describe missing %q in:\n%s", want, text)
		}
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	m, _, _ := newStore(t, []string{"a"}, [][]string{{"x"}})

	if _, err := Columns(context.Background(), m, "ds_nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Columns err=%v, want ErrNotFound", err)
	}
	if _, err := Build(context.Background(), m, "ds_nope", Options{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Build err=%v, want ErrNotFound", err)
	}
}
