package models

import (
	"time"

	"github.com/google/uuid"
)

// Cell ties a row to a column. The cell record itself carries identity
// only; the value lives in exactly one per-type value table, keyed by the
// cell id, chosen by the column's declared type.
type Cell struct {
	ID        uuid.UUID `json:"id"`
	RowID     uuid.UUID `json:"row_id"`
	ColumnID  uuid.UUID `json:"column_id"`
	CreatedAt time.Time `json:"created_at"`

	// Value is populated on reads. Nil means the cell record exists but no
	// value row was found; that cannot happen when every write goes
	// through the repository, which inserts both in one transaction.
	Value CellValue `json:"value,omitempty"`

	// ValueTable records which value table the value resolved from, so
	// callers can render without re-deriving the column type.
	ValueTable string `json:"value_table,omitempty"`
}

// CellValue is the sum type over the eight storable value shapes. Exactly
// one concrete type exists per column type; holding a CellValue means
// holding exactly one populated variant.
type CellValue interface {
	// ColumnType returns the column type this value belongs to.
	ColumnType() ColumnType
}

// StringValue holds a plain text value.
type StringValue struct {
	Value string `json:"value"`
}

// NumberValue holds a finite IEEE-754 double.
type NumberValue struct {
	Value float64 `json:"value"`
}

// BoolValue holds a boolean.
type BoolValue struct {
	Value bool `json:"value"`
}

// DateValue holds an instant.
type DateValue struct {
	Value time.Time `json:"value"`
}

// RichtextValue holds a rich text document as opaque JSON. The engine
// validates that it is well-formed JSON but does not interpret the
// editor's node structure.
type RichtextValue struct {
	Document []byte `json:"document"`
}

// PointValue holds one coordinate.
type PointValue struct {
	Coordinate LngLat `json:"coordinate"`
}

// LineValue holds an ordered coordinate sequence.
type LineValue struct {
	Coordinates LineString `json:"coordinates"`
}

// PolygonValue holds polygon rings, outer ring first.
type PolygonValue struct {
	Rings PolygonRings `json:"rings"`
}

func (StringValue) ColumnType() ColumnType   { return ColumnTypeString }
func (NumberValue) ColumnType() ColumnType   { return ColumnTypeNumber }
func (BoolValue) ColumnType() ColumnType     { return ColumnTypeBool }
func (DateValue) ColumnType() ColumnType     { return ColumnTypeDate }
func (RichtextValue) ColumnType() ColumnType { return ColumnTypeRichtext }
func (PointValue) ColumnType() ColumnType    { return ColumnTypePoint }
func (LineValue) ColumnType() ColumnType     { return ColumnTypeLine }
func (PolygonValue) ColumnType() ColumnType  { return ColumnTypePolygon }

// Ensure every variant satisfies CellValue at compile time.
var (
	_ CellValue = StringValue{}
	_ CellValue = NumberValue{}
	_ CellValue = BoolValue{}
	_ CellValue = DateValue{}
	_ CellValue = RichtextValue{}
	_ CellValue = PointValue{}
	_ CellValue = LineValue{}
	_ CellValue = PolygonValue{}
)
