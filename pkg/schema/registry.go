// Package schema is the single authority on column value shapes. Every
// column type's validation rule lives here; adding a column type means
// extending the switch in Validate and the models.CellValue sum type,
// and nothing else.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// Registry validates raw values against column types. It is stateless;
// the zero value is ready to use.
type Registry struct{}

// NewRegistry creates a schema registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// dateLayouts are accepted date encodings, tried in order. RFC 3339 is
// canonical; date-only values come from form date pickers.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// Validate parses raw as a value of the given column type and returns the
// typed value. Failures wrap apperrors.ErrInvalidValue; an unknown column
// type is also ErrInvalidValue since it can only come from an unvalidated
// boundary.
func (r *Registry) Validate(columnType models.ColumnType, raw json.RawMessage) (models.CellValue, error) {
	switch columnType {
	case models.ColumnTypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, invalid("string value must be a JSON string: %v", err)
		}
		return models.StringValue{Value: s}, nil

	case models.ColumnTypeNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, invalid("number value must be a JSON number: %v", err)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, invalid("number value must be finite")
		}
		return models.NumberValue{Value: n}, nil

	case models.ColumnTypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, invalid("bool value must be a JSON boolean: %v", err)
		}
		return models.BoolValue{Value: b}, nil

	case models.ColumnTypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, invalid("date value must be a JSON string: %v", err)
		}
		t, err := parseDate(s)
		if err != nil {
			return nil, invalid("date value %q does not parse: %v", s, err)
		}
		return models.DateValue{Value: t}, nil

	case models.ColumnTypeRichtext:
		if !json.Valid(raw) {
			return nil, invalid("richtext value must be well-formed JSON")
		}
		doc := make([]byte, len(raw))
		copy(doc, raw)
		return models.RichtextValue{Document: doc}, nil

	case models.ColumnTypePoint:
		var c models.LngLat
		if err := unmarshalStrictNumbers(raw, &c); err != nil {
			return nil, invalid("point value must be an {x, y} object: %v", err)
		}
		if err := c.Validate(); err != nil {
			return nil, invalid("point: %v", err)
		}
		return models.PointValue{Coordinate: c}, nil

	case models.ColumnTypeLine:
		var l models.LineString
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, invalid("line value must be an array of {x, y} objects: %v", err)
		}
		if err := l.Validate(); err != nil {
			return nil, invalid("line: %v", err)
		}
		return models.LineValue{Coordinates: l}, nil

	case models.ColumnTypePolygon:
		var p models.PolygonRings
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, invalid("polygon value must be an array of rings: %v", err)
		}
		if err := p.Validate(); err != nil {
			return nil, invalid("polygon: %v", err)
		}
		return models.PolygonValue{Rings: p}, nil
	}

	return nil, invalid("unknown column type %q", columnType)
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// unmarshalStrictNumbers decodes into dst while rejecting JSON that
// encodes coordinates as strings or omits fields via unknown keys. The
// front-end has sent {lat, lng} objects here before; failing early beats
// silently storing zeros.
func unmarshalStrictNumbers(raw json.RawMessage, dst *models.LngLat) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if _, ok := fields["x"]; !ok {
		return fmt.Errorf("missing field x")
	}
	if _, ok := fields["y"]; !ok {
		return fmt.Errorf("missing field y")
	}
	return json.Unmarshal(raw, dst)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidValue, fmt.Sprintf(format, args...))
}
