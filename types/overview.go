package types

// Overview is the tabular output of one report module, consumed by the CSV
// and JSON exporters.
type Overview struct {
	Columns []string
	Rows    []*OverviewRow
}

// OverviewRow holds one resource. Exposure is nil for reports without a
// network column; when set, the exporter renders its label and one
// continuation row per whitelisted location.
type OverviewRow struct {
	Name     string
	Exposure *NetworkExposure
	Values   []string
}

func (overview *Overview) AddRow(row *OverviewRow) {
	overview.Rows = append(overview.Rows, row)
}
