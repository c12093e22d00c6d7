package inventory

type unitPair struct {
	from string
	to   string
}

// ConversionTable is an immutable set of direct unit conversion edges.
// Lookups never chain edges: A→B and B→C do not imply A→C.
// 単位換算テーブル（直接エッジのみ、多段換算なし）
type ConversionTable struct {
	edges map[unitPair]float64
}

// NewConversionTable builds a table from conversion rows. Rows with a
// non-positive factor are ignored; a later duplicate edge overrides an earlier one.
// 換算行からテーブルを構築（係数0以下は無視）
func NewConversionTable(conversions []UnitConversion) *ConversionTable {
	t := &ConversionTable{edges: make(map[unitPair]float64, len(conversions))}
	for _, c := range conversions {
		if c.Factor <= 0 || c.FromUnitID == "" || c.ToUnitID == "" {
			continue
		}
		t.edges[unitPair{c.FromUnitID, c.ToUnitID}] = c.Factor
	}
	return t
}

// Lookup returns the factor that converts fromUnitID into toUnitID and whether
// one was found (identity, direct edge, or inverted reverse edge).
// 換算係数を返す（恒等・直接・逆方向）
func (t *ConversionTable) Lookup(fromUnitID, toUnitID string) (float64, bool) {
	if fromUnitID == toUnitID {
		return 1, true
	}
	if t == nil {
		return 1, false
	}
	if f, ok := t.edges[unitPair{fromUnitID, toUnitID}]; ok {
		return f, true
	}
	if f, ok := t.edges[unitPair{toUnitID, fromUnitID}]; ok {
		return 1 / f, true
	}
	return 1, false
}

// Convert converts qty between units. Unknown pairs pass through unchanged.
// 数量を換算（未定義の組み合わせはそのまま返す）
func (t *ConversionTable) Convert(qty float64, fromUnitID, toUnitID string) float64 {
	f, _ := t.Lookup(fromUnitID, toUnitID)
	return qty * f
}

// Len returns the number of stored edges
func (t *ConversionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.edges)
}
