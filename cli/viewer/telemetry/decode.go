package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	fieldAddress   = "address"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

var (
	ErrMalformed = errors.New("некорректное телеметрическое сообщение")
	ErrMissingID = errors.New("телеметрическое сообщение без адреса")
)

// Decode parses a wire message into a Report. The wire "address" field becomes
// Report.ID. Location is set only when both coordinates are present, non-null
// and in range; otherwise the coordinates stay in Attributes as they arrived.
func Decode(payload []byte) (Report, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Report{}, fmt.Errorf("%w: не JSON-объект", ErrMalformed)
	}

	id, err := decodeID(fields[fieldAddress])
	if err != nil {
		return Report{}, err
	}
	lat, hasLat, err := decodeCoordinate(fieldLatitude, fields[fieldLatitude])
	if err != nil {
		return Report{}, err
	}
	lon, hasLon, err := decodeCoordinate(fieldLongitude, fields[fieldLongitude])
	if err != nil {
		return Report{}, err
	}

	delete(fields, fieldAddress)
	report := Report{ID: id, Attributes: fields}

	if hasLat && hasLon {
		if loc := (Location{Latitude: lat, Longitude: lon}); loc.valid() {
			delete(fields, fieldLatitude)
			delete(fields, fieldLongitude)
			report.Location = &loc
		}
	}

	return report, nil
}

func decodeID(raw json.RawMessage) (EntityID, error) {
	if isNull(raw) {
		return "", ErrMissingID
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: адрес: %v", ErrMalformed, err)
	}

	switch id := v.(type) {
	case string:
		if id == "" {
			return "", ErrMissingID
		}
		return EntityID(id), nil
	case json.Number:
		return EntityID(id.String()), nil
	default:
		return "", fmt.Errorf("%w: адрес типа %T", ErrMalformed, v)
	}
}

func decodeCoordinate(name string, raw json.RawMessage) (float64, bool, error) {
	if isNull(raw) {
		return 0, false, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return v, true, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
