package schema

import (
	"fmt"
	"testing"
)

func TestDetectType_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   Type
	}{
		{name: "all_empty", values: []string{"", "  ", ""}, want: Text},
		{name: "no_values", values: nil, want: Text},
		{name: "integers", values: []string{"1", "2", "3"}, want: Numeric},
		{name: "thousands_separators", values: []string{"1,200", "3,400.50", "-7"}, want: Numeric},
		{name: "exactly_80_percent_numeric", values: []string{"1", "2", "3", "4", "n/a"}, want: Numeric},
		{name: "below_80_percent_numeric", values: []string{"1", "2", "3", "x", "y"}, want: Text},
		{name: "empties_ignored", values: []string{"10", "", "", "20"}, want: Numeric},
		{name: "iso_dates", values: []string{"2024-01-05", "2024-02-10", "2024-03-15"}, want: Date},
		{name: "us_dates", values: []string{"1/5/24", "12/31/2023", "3/4/2024"}, want: Date},
		{name: "dash_dates", values: []string{"1-5-24", "12-31-2023"}, want: Date},
		{name: "mostly_dates", values: []string{"2024-01-05", "2024-02-10", "2024-03-15", "soon", "later"}, want: Date},
		{name: "timestamp_is_text", values: []string{"2024-01-05 10:00", "2024-01-06 11:00"}, want: Text},
		{name: "words", values: []string{"East", "West", "North"}, want: Text},
		{name: "nan_is_not_numeric", values: []string{"NaN", "Inf", "x"}, want: Text},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectType(tt.values); got != tt.want {
				t.Fatalf("DetectType(%q)=%s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestDetectType_NumericWhenAtLeast80Percent(t *testing.T) {
	t.Parallel()

	// Every mix with >= 80% numeric values must classify as numeric.
	for total := 1; total <= 20; total++ {
		for bad := 0; bad <= total; bad++ {
			good := total - bad
			values := make([]string, 0, total)
			for i := 0; i < good; i++ {
				values = append(values, fmt.Sprintf("%d,%03d", i+1, i))
			}
			for i := 0; i < bad; i++ {
				values = append(values, "text")
			}
			got := DetectType(values)
			if float64(good)/float64(total) >= 0.8 && got != Numeric {
				t.Fatalf("good=%d total=%d: got %s, want numeric", good, total, got)
			}
			if float64(good)/float64(total) < 0.8 && got == Numeric {
				t.Fatalf("good=%d total=%d: got numeric", good, total)
			}
		}
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{in: "100", want: 100, wantOK: true},
		{in: " 1,234.5 ", want: 1234.5, wantOK: true},
		{in: "-0.25", want: -0.25, wantOK: true},
		{in: "1e3", want: 1000, wantOK: true},
		{in: "", wantOK: false},
		{in: ",", wantOK: false},
		{in: "abc", wantOK: false},
		{in: "NaN", wantOK: false},
		{in: "+Inf", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Fatalf("ParseNumber(%q)=(%v,%v), want (%v,%v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestInfer_RegionSales(t *testing.T) {
	t.Parallel()

	headers := []string{" Region ", "Sales", "Notes"}
	rows := [][]string{
		{"East", "100", ""},
		{"West", "250"},
	}

	got := Infer(headers, rows)
	want := []Column{
		{Name: "Region", Type: Text, Sample: "East"},
		{Name: "Sales", Type: Numeric, Sample: "100"},
		{Name: "Notes", Type: Text, Sample: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInferWithSample_OnlyInspectsLeadingRows(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 0, 10)
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{fmt.Sprint(i)})
	}
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{"word"})
	}

	if got := InferWithSample([]string{"v"}, rows, 5)[0].Type; got != Numeric {
		t.Fatalf("sample of 5: got %s, want numeric", got)
	}
	if got := InferWithSample([]string{"v"}, rows, 10)[0].Type; got != Text {
		t.Fatalf("sample of 10: got %s, want text", got)
	}
}
