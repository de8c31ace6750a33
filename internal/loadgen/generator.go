package loadgen

import (
	"fmt"
	"math/rand"
	"strconv"
)

// Table shapes produced by the generator.
const (
	shapeStatement = iota
	shapeContact
	shapeEmpty
	shapeDuplicate
	shapeProse
	shapeCount
)

// statement row labels.
var lineItems = []string{
	"Revenue from operations",
	"Other income",
	"Cost of materials consumed",
	"Employee benefits expense",
	"Finance costs",
	"Depreciation and amortisation",
	"Profit before tax",
	"Total comprehensive income",
}

type wireTable struct {
	PageNumber int                 `json:"page_number"`
	TableData  []map[string]string `json:"table_data"`
}

type wireDossier struct {
	Filename string      `json:"filename,omitempty"`
	Tables   []wireTable `json:"tables"`
}

// dossierKey is zero padded so encoded batches keep generation order.
func dossierKey(i int) string {
	return fmt.Sprintf("synth-%06d", i)
}

// generateDossiers builds the synthetic corpus keyed by dossierKey.
func generateDossiers(cfg Config, rng *rand.Rand) (map[string]wireDossier, int) {
	out := make(map[string]wireDossier, cfg.Dossiers)
	tables := 0
	for i := range cfg.Dossiers {
		d := wireDossier{Tables: make([]wireTable, 0, cfg.Tables)}
		if rng.Intn(4) != 0 {
			d.Filename = dossierKey(i) + ".pdf"
		}
		for j := range cfg.Tables {
			d.Tables = append(d.Tables, generateTable(rng, j, d.Tables))
		}
		tables += len(d.Tables)
		out[dossierKey(i)] = d
	}
	return out, tables
}

func generateTable(rng *rand.Rand, idx int, prev []wireTable) wireTable {
	page := 2 + idx + rng.Intn(60)
	switch shape := rng.Intn(shapeCount); {
	case shape == shapeDuplicate && len(prev) > 0:
		return prev[rng.Intn(len(prev))]
	case shape == shapeContact:
		return wireTable{PageNumber: 1, TableData: []map[string]string{{
			"a": "Registrar: Synthetic RTA Ltd",
			"b": "Email: investor" + strconv.Itoa(idx) + "@example.com",
			"c": "Tel: 0" + strconv.Itoa(100000000+rng.Intn(900000000)),
		}}}
	case shape == shapeEmpty:
		return wireTable{PageNumber: page, TableData: []map[string]string{}}
	case shape == shapeProse:
		return wireTable{PageNumber: page, TableData: []map[string]string{{
			"text": "The company continues to evaluate opportunities across segments and geographies.",
		}}}
	default:
		return statementTable(rng, page)
	}
}

func statementTable(rng *rand.Rand, page int) wireTable {
	years := 2 + rng.Intn(2)
	header := map[string]string{"col_0": "Particulars"}
	for y := range years {
		header["col_"+strconv.Itoa(y+1)] = "FY" + strconv.Itoa(20+y)
	}
	rows := []map[string]string{header}
	for _, item := range lineItems[:2+rng.Intn(len(lineItems)-1)] {
		row := map[string]string{"col_0": item}
		for y := range years {
			row["col_"+strconv.Itoa(y+1)] = strconv.FormatFloat(rng.Float64()*5000, 'f', 1, 64)
		}
		rows = append(rows, row)
	}
	return wireTable{PageNumber: page, TableData: rows}
}

// batches splits the generated keys into request-sized groups.
func batches(cfg Config, ds map[string]wireDossier) []map[string]wireDossier {
	size := max(cfg.BatchSize, 1)
	var out []map[string]wireDossier
	for start := 0; start < cfg.Dossiers; start += size {
		b := make(map[string]wireDossier, size)
		for i := start; i < min(start+size, cfg.Dossiers); i++ {
			b[dossierKey(i)] = ds[dossierKey(i)]
		}
		out = append(out, b)
	}
	return out
}
