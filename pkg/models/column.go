package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType is the declared type of a dataset column. The set is closed:
// every switch over ColumnType in this codebase must handle all eight
// values and fail loudly on anything else.
type ColumnType string

const (
	ColumnTypeString   ColumnType = "string"
	ColumnTypeNumber   ColumnType = "number"
	ColumnTypeBool     ColumnType = "bool"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeRichtext ColumnType = "richtext"
	ColumnTypePoint    ColumnType = "point"
	ColumnTypeLine     ColumnType = "line"
	ColumnTypePolygon  ColumnType = "polygon"
)

// ColumnTypes lists every valid column type, in declaration order.
var ColumnTypes = []ColumnType{
	ColumnTypeString,
	ColumnTypeNumber,
	ColumnTypeBool,
	ColumnTypeDate,
	ColumnTypeRichtext,
	ColumnTypePoint,
	ColumnTypeLine,
	ColumnTypePolygon,
}

// Valid reports whether t is one of the eight declared column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnTypeString, ColumnTypeNumber, ColumnTypeBool, ColumnTypeDate,
		ColumnTypeRichtext, ColumnTypePoint, ColumnTypeLine, ColumnTypePolygon:
		return true
	}
	return false
}

// ValueTable returns the name of the value table that holds cells of this
// type. A cell's value row lives in exactly this table and no other.
func (t ColumnType) ValueTable() string {
	switch t {
	case ColumnTypeString:
		return "engine_cell_string_values"
	case ColumnTypeNumber:
		return "engine_cell_number_values"
	case ColumnTypeBool:
		return "engine_cell_bool_values"
	case ColumnTypeDate:
		return "engine_cell_date_values"
	case ColumnTypeRichtext:
		return "engine_cell_richtext_values"
	case ColumnTypePoint:
		return "engine_cell_point_values"
	case ColumnTypeLine:
		return "engine_cell_line_values"
	case ColumnTypePolygon:
		return "engine_cell_polygon_values"
	}
	return ""
}

// Column is a typed field definition within a dataset. The type is fixed
// at creation; renames are allowed.
type Column struct {
	ID        uuid.UUID  `json:"id"`
	DatasetID uuid.UUID  `json:"dataset_id"`
	Name      string     `json:"name"`
	Type      ColumnType `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}
