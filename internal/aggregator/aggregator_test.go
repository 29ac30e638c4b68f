package aggregator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"github.com/shopspring/decimal"
)

// line builds a record of n segments (leading and trailing empty segments
// included) with the given positions set.
func line(registro string, n int, values map[int]string) string {
	parts := make([]string, n)
	parts[1] = registro
	for pos, v := range values {
		parts[pos] = v
	}
	return strings.Join(parts, "|") + "\n"
}

func c170(cfop, cstPIS, basePIS, ratePIS, pis, cstCOFINS, baseCOFINS, rateCOFINS, cofins string) string {
	return line("C170", 38, map[int]string{
		2: "1", 3: "ITEM", 7: "1000,00", 11: cfop,
		15: "180,00", 18: "10,00", 24: "50,00",
		25: cstPIS, 26: basePIS, 27: ratePIS, 30: pis,
		31: cstCOFINS, 32: baseCOFINS, 33: rateCOFINS, 36: cofins,
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func aggregateString(t *testing.T, input string) *Table {
	t.Helper()
	table, err := AggregateReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("AggregateReader: %v", err)
	}
	return table
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100,00", "100"},
		{"1,65", "1.65"},
		{"0,6500", "0.65"},
		{"", "0"},
		{"  ", "0"},
		{"abc", "0"},
		{"1,2,3", "0"},
		{"42", "42"},
	}
	for _, tt := range tests {
		if got := ParseAmount(tt.in); !got.Equal(dec(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAggregateSingleItem(t *testing.T) {
	input := "|0000|017|0|01012024|31012024|EMPRESA|\n" +
		c170("5102", "01", "100,00", "1,65", "1,65", "01", "100,00", "7,60", "7,60") +
		"|9999|3|\n"

	table := aggregateString(t, input)
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	row := table.Rows()[0]
	want := []string{
		"C", "5102",
		"1000.00", "180.00", "10.00", "50.00",
		"01", "100.00", "1.65", "1.65",
		"01", "100.00", "7.6", "7.60",
	}
	if got := row.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("Values() =\n%v\nwant\n%v", got, want)
	}
	if len(row.Values()) != len(Columns) {
		t.Errorf("row has %d values, %d columns", len(row.Values()), len(Columns))
	}
}

func TestAggregateAccumulates(t *testing.T) {
	input := c170("5102", "01", "100,00", "1,65", "1,65", "01", "100,00", "7,60", "7,60") +
		c170("5102", "01", "50,00", "1,6500", "0,83", "01", "50,00", "7,6", "3,80") +
		c170("6102", "01", "10,00", "1,65", "0,17", "01", "10,00", "7,60", "0,76")

	table := aggregateString(t, input)
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	row, ok := table.Get(Key{Block: BlockC, CFOP: "5102", CSTPIS: "01", RatePIS: "1.65", CSTCOFINS: "01", RateCOFINS: "7.6"})
	if !ok {
		t.Fatal("row for 5102 not found")
	}
	if !row.Item.Equal(dec("2000")) || !row.BasePIS.Equal(dec("150")) || !row.PIS.Equal(dec("2.48")) {
		t.Errorf("5102 sums: item=%s basePIS=%s pis=%s", row.Item, row.BasePIS, row.PIS)
	}
	if !row.COFINS.Equal(dec("11.40")) {
		t.Errorf("5102 COFINS = %s, want 11.40", row.COFINS)
	}

	rows := table.Rows()
	if rows[0].CFOP != "5102" || rows[1].CFOP != "6102" {
		t.Errorf("rows not in key order: %s, %s", rows[0].CFOP, rows[1].CFOP)
	}
}

func TestAggregateTrimsKeyFields(t *testing.T) {
	table := aggregateString(t,
		c170("5102", "01", "100,00", "1,65", "1,65", "01", "100,00", "7,60", "7,60")+
			c170(" 5102 ", " 01", "100,00", "1,65", "1,65", "01 ", "100,00", "7,60", "7,60"))

	if table.Len() != 1 {
		t.Fatalf("got %d rows, want padded key fields merged into 1", table.Len())
	}
	row, ok := table.Get(Key{Block: BlockC, CFOP: "5102", CSTPIS: "01", RatePIS: "1.65", CSTCOFINS: "01", RateCOFINS: "7.6"})
	if !ok {
		t.Fatal("row for 5102 not found")
	}
	if !row.PIS.Equal(dec("3.30")) {
		t.Errorf("PIS = %s, want 3.30", row.PIS)
	}
}

func TestAggregateLayouts(t *testing.T) {
	a170 := line("A170", 16, map[int]string{
		5: "500,00", 7: "01", 8: "500,00", 9: "1,65", 10: "8,25",
		11: "01", 12: "500,00", 13: "7,6", 14: "38,00",
	})
	d101 := line("D101", 9, map[int]string{2: "0", 3: "300,00", 4: "50", 5: "300,00", 6: "1,65", 7: "4,95"})
	d105 := line("D105", 9, map[int]string{2: "0", 3: "300,00", 4: "50", 5: "300,00", 6: "7,6", 7: "22,80"})
	d501 := line("D501", 9, map[int]string{3: "80,00", 4: "01", 5: "80,00", 6: "1,65", 7: "1,32"})
	d505 := line("D505", 9, map[int]string{3: "80,00", 4: "", 5: "80,00", 6: "7,6", 7: "6,08"})

	table := aggregateString(t, a170+d101+d105+d501+d505)

	tests := []struct {
		name string
		key  Key
		want []string
	}{
		{
			name: "A170 uses the services placeholder",
			key:  Key{Block: BlockA, CFOP: CFOPServices, CSTPIS: "01", RatePIS: "1.65", CSTCOFINS: "01", RateCOFINS: "7.6"},
			want: []string{"A", "SERV", "500.00", "0.00", "0.00", "0.00", "01", "500.00", "1.65", "8.25", "01", "500.00", "7.6", "38.00"},
		},
		{
			name: "D101 populates PIS only",
			key:  Key{Block: BlockD, CFOP: CFOPTransport, CSTPIS: "50", RatePIS: "1.65", RateCOFINS: "0"},
			want: []string{"D", "TRANSP", "300.00", "0.00", "0.00", "0.00", "50", "300.00", "1.65", "4.95", "-", "0.00", "0", "0.00"},
		},
		{
			name: "D105 populates COFINS only",
			key:  Key{Block: BlockD, CFOP: CFOPTransport, RatePIS: "0", CSTCOFINS: "50", RateCOFINS: "7.6"},
			want: []string{"D", "TRANSP", "300.00", "0.00", "0.00", "0.00", "-", "0.00", "0", "0.00", "50", "300.00", "7.6", "22.80"},
		},
		{
			name: "D501 uses the telecom placeholder",
			key:  Key{Block: BlockD, CFOP: CFOPTelecom, CSTPIS: "01", RatePIS: "1.65", RateCOFINS: "0"},
			want: []string{"D", "TELECOM", "80.00", "0.00", "0.00", "0.00", "01", "80.00", "1.65", "1.32", "-", "0.00", "0", "0.00"},
		},
		{
			name: "D505 with empty CST shows the placeholder",
			key:  Key{Block: BlockD, CFOP: CFOPTelecom, RatePIS: "0", RateCOFINS: "7.6"},
			want: []string{"D", "TELECOM", "80.00", "0.00", "0.00", "0.00", "-", "0.00", "0", "0.00", "-", "80.00", "7.6", "6.08"},
		},
	}

	if table.Len() != len(tests) {
		t.Fatalf("Len() = %d, want %d distinct rows", table.Len(), len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := table.Get(tt.key)
			if !ok {
				t.Fatalf("row %+v not found", tt.key)
			}
			if got := row.Values(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Values() =\n%v\nwant\n%v", got, tt.want)
			}
		})
	}
}

func TestAggregateSkipsMalformed(t *testing.T) {
	input := "|C170|1|ITEM|1|UN|1000,00|\n" + // short C170
		"|A170|1|\n" +
		"|D101|0|\n" +
		"|C100|0|1|P1|55|00|1|100|K|15012024|15012024|1000,00|\n" + // unsupported
		"C170 without pipes\n" +
		"\n"

	table := aggregateString(t, input)
	if !table.Empty() {
		t.Errorf("Len() = %d, want an empty table", table.Len())
	}
	if table.Records() == nil || len(table.Records()) != 0 {
		t.Errorf("Records() = %v, want empty", table.Records())
	}
}

func TestAggregateIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sped.txt")
	input := c170("5102", "01", "100,00", "1,65", "1,65", "01", "100,00", "7,60", "7,60") +
		c170("1102", "50", "20,00", "1,65", "0,33", "50", "20,00", "7,60", "1,52") +
		line("D101", 9, map[int]string{3: "300,00", 4: "50", 5: "300,00", 6: "1,65", 7: "4,95"})
	if err := os.WriteFile(path, []byte(input), 0644); err != nil {
		t.Fatal(err)
	}

	var reports []int
	first, err := Aggregate(context.Background(), path, Options{Progress: func(p int) { reports = append(reports, p) }})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	second, err := Aggregate(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if !reflect.DeepEqual(first.Records(), second.Records()) {
		t.Errorf("runs differ:\n%v\n%v", first.Records(), second.Records())
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want a final 100", reports)
	}
}

func TestAggregateFailures(t *testing.T) {
	dir := t.TempDir()

	table, err := Aggregate(context.Background(), filepath.Join(dir, "missing.txt"), Options{})
	if err == nil || table != nil {
		t.Errorf("missing file: table=%v err=%v", table, err)
	}

	table, err = Aggregate(context.Background(), dir, Options{})
	if !errors.Is(err, spedparser.ErrNotAFile) || table != nil {
		t.Errorf("directory: table=%v err=%v", table, err)
	}

	var b strings.Builder
	for i := 0; i < spedparser.ProgressInterval; i++ {
		b.WriteString("|0150|P|NAME|\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table, err = AggregateReader(ctx, strings.NewReader(b.String()))
	if !errors.Is(err, context.Canceled) || table != nil {
		t.Errorf("cancelled: table=%v err=%v", table, err)
	}
}
