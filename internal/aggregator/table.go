package aggregator

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// placeholderCST is shown when a record carries no CST for a contribution.
const placeholderCST = "-"

// btreeDegree is the branching factor of the row index.
const btreeDegree = 16

// Columns are the headers of the aggregation table, in output order.
var Columns = []string{
	"Bloco", "CFOP",
	"Valor_Item", "Valor_ICMS", "Valor_ICMS_ST", "Valor_IPI",
	"CST_PIS", "Base_PIS", "Aliq_PIS", "Valor_PIS",
	"CST_COFINS", "Base_COFINS", "Aliq_COFINS", "Valor_COFINS",
}

// Key is the fiscal classification that identifies one table row. Rates
// are held as canonical decimal strings so 1,65 and 1,6500 share a row.
type Key struct {
	Block      string
	CFOP       string
	CSTPIS     string
	RatePIS    string
	CSTCOFINS  string
	RateCOFINS string
}

func (k Key) fields() [6]string {
	return [6]string{k.Block, k.CFOP, k.CSTPIS, k.RatePIS, k.CSTCOFINS, k.RateCOFINS}
}

// Less orders keys field by field.
func (k Key) Less(other Key) bool {
	a, b := k.fields(), other.fields()
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Amounts are the eight monetary sums of a row.
type Amounts struct {
	Item       decimal.Decimal
	ICMS       decimal.Decimal
	ICMSST     decimal.Decimal
	IPI        decimal.Decimal
	BasePIS    decimal.Decimal
	PIS        decimal.Decimal
	BaseCOFINS decimal.Decimal
	COFINS     decimal.Decimal
}

// Add returns the field-wise sum of a and b.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Item:       a.Item.Add(b.Item),
		ICMS:       a.ICMS.Add(b.ICMS),
		ICMSST:     a.ICMSST.Add(b.ICMSST),
		IPI:        a.IPI.Add(b.IPI),
		BasePIS:    a.BasePIS.Add(b.BasePIS),
		PIS:        a.PIS.Add(b.PIS),
		BaseCOFINS: a.BaseCOFINS.Add(b.BaseCOFINS),
		COFINS:     a.COFINS.Add(b.COFINS),
	}
}

// Row is one line of the aggregation table.
type Row struct {
	Key
	Amounts
}

// Values renders the row in Columns order. Amounts use two decimal places,
// rates keep their canonical form.
func (r *Row) Values() []string {
	money := func(d decimal.Decimal) string { return d.StringFixed(2) }
	return []string{
		r.Block, r.CFOP,
		money(r.Item), money(r.ICMS), money(r.ICMSST), money(r.IPI),
		cstOrPlaceholder(r.CSTPIS), money(r.BasePIS), r.RatePIS, money(r.PIS),
		cstOrPlaceholder(r.CSTCOFINS), money(r.BaseCOFINS), r.RateCOFINS, money(r.COFINS),
	}
}

func cstOrPlaceholder(cst string) string {
	if cst == "" {
		return placeholderCST
	}
	return cst
}

// Table accumulates rows keyed by Key and yields them in key order.
type Table struct {
	rows *btree.BTreeG[*Row]
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		rows: btree.NewG(btreeDegree, func(a, b *Row) bool { return a.Key.Less(b.Key) }),
	}
}

// Add folds amounts into the row for key, creating it on first use.
func (t *Table) Add(key Key, amounts Amounts) {
	if row, ok := t.rows.Get(&Row{Key: key}); ok {
		row.Amounts = row.Amounts.Add(amounts)
		return
	}
	t.rows.ReplaceOrInsert(&Row{Key: key, Amounts: Amounts{}.Add(amounts)})
}

// Get returns the row for key.
func (t *Table) Get(key Key) (*Row, bool) {
	return t.rows.Get(&Row{Key: key})
}

// Len is the number of distinct keys.
func (t *Table) Len() int { return t.rows.Len() }

// Empty reports whether no qualifying record was found.
func (t *Table) Empty() bool { return t.rows.Len() == 0 }

// Rows returns every row in key order.
func (t *Table) Rows() []*Row {
	out := make([]*Row, 0, t.rows.Len())
	t.rows.Ascend(func(r *Row) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Records returns the table as string rows in Columns order, without a
// header.
func (t *Table) Records() [][]string {
	rows := t.Rows()
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}
