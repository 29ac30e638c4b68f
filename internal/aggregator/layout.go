package aggregator

import (
	"strings"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"github.com/shopspring/decimal"
)

// Block tags of the aggregation table.
const (
	BlockA = "A"
	BlockC = "C"
	BlockD = "D"
)

// CFOP placeholders for record types that carry no CFOP.
const (
	CFOPServices  = "SERV"
	CFOPTransport = "TRANSP"
	CFOPTelecom   = "TELECOM"
)

// taxFields are the positions of one contribution (PIS or COFINS).
type taxFields struct {
	cst, base, rate, value int
}

// layout describes where a supported record type keeps its values.
// A zero position means the value is not present in the record.
type layout struct {
	block  string
	minLen int

	item int

	// cfopField wins over cfop when non-zero.
	cfopField int
	cfop      string

	icms, icmsST, ipi int

	pis, cofins *taxFields
}

var layouts = map[string]layout{
	"C170": {
		block: BlockC, minLen: 37,
		item: 7, cfopField: 11,
		icms: 15, icmsST: 18, ipi: 24,
		pis:    &taxFields{cst: 25, base: 26, rate: 27, value: 30},
		cofins: &taxFields{cst: 31, base: 32, rate: 33, value: 36},
	},
	"A170": {
		block: BlockA, minLen: 15,
		item: 5, cfop: CFOPServices,
		pis:    &taxFields{cst: 7, base: 8, rate: 9, value: 10},
		cofins: &taxFields{cst: 11, base: 12, rate: 13, value: 14},
	},
	"D101": {
		block: BlockD, minLen: 8,
		item: 3, cfop: CFOPTransport,
		pis: &taxFields{cst: 4, base: 5, rate: 6, value: 7},
	},
	"D105": {
		block: BlockD, minLen: 8,
		item: 3, cfop: CFOPTransport,
		cofins: &taxFields{cst: 4, base: 5, rate: 6, value: 7},
	},
	"D501": {
		block: BlockD, minLen: 8,
		item: 3, cfop: CFOPTelecom,
		pis: &taxFields{cst: 4, base: 5, rate: 6, value: 7},
	},
	"D505": {
		block: BlockD, minLen: 8,
		item: 3, cfop: CFOPTelecom,
		cofins: &taxFields{cst: 4, base: 5, rate: 6, value: 7},
	},
}

// Supported reports whether registro is folded into the aggregation.
func Supported(registro string) bool {
	_, ok := layouts[registro]
	return ok
}

// ParseAmount converts a SPED decimal ("1234,56") to a decimal. Empty or
// malformed values are zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// amount reads position pos of rec; position 0 is always zero.
func amount(rec spedparser.Record, pos int) decimal.Decimal {
	if pos == 0 {
		return decimal.Zero
	}
	return ParseAmount(rec.Field(pos))
}

// entry extracts the key and amounts of one supported record. It reports
// false when rec is too short for its layout.
func (l layout) entry(rec spedparser.Record) (Key, Amounts, bool) {
	if rec.Len() < l.minLen {
		return Key{}, Amounts{}, false
	}

	key := Key{Block: l.block, CFOP: l.cfop}
	if l.cfopField != 0 {
		key.CFOP = strings.TrimSpace(rec.Field(l.cfopField))
	}

	amounts := Amounts{
		Item:   amount(rec, l.item),
		ICMS:   amount(rec, l.icms),
		ICMSST: amount(rec, l.icmsST),
		IPI:    amount(rec, l.ipi),
	}

	var pisRate, cofinsRate decimal.Decimal
	if l.pis != nil {
		key.CSTPIS = strings.TrimSpace(rec.Field(l.pis.cst))
		pisRate = amount(rec, l.pis.rate)
		amounts.BasePIS = amount(rec, l.pis.base)
		amounts.PIS = amount(rec, l.pis.value)
	}
	if l.cofins != nil {
		key.CSTCOFINS = strings.TrimSpace(rec.Field(l.cofins.cst))
		cofinsRate = amount(rec, l.cofins.rate)
		amounts.BaseCOFINS = amount(rec, l.cofins.base)
		amounts.COFINS = amount(rec, l.cofins.value)
	}
	key.RatePIS = pisRate.String()
	key.RateCOFINS = cofinsRate.String()

	return key, amounts, true
}
