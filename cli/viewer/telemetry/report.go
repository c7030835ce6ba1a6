package telemetry

import (
	"encoding/json"
	"sort"
)

// EntityID identifies an aircraft across reports. Numeric wire addresses keep
// their literal textual form.
type EntityID string

// Report is one decoded telemetry message. Location is nil when the message did
// not carry a usable pair of coordinates; in that case whatever latitude and
// longitude arrived are kept in Attributes with every other wire field.
type Report struct {
	ID         EntityID
	Location   *Location
	Attributes map[string]json.RawMessage
}

func (r Report) HasLocation() bool {
	return r.Location != nil
}

// Identification returns the flight identification (callsign) if present.
func (r Report) Identification() (string, bool) {
	var s string
	if !r.attribute("identification", &s) || s == "" {
		return "", false
	}
	return s, true
}

// Altitude returns the altitude in feet if present.
func (r Report) Altitude() (int, bool) {
	var v int
	return v, r.attribute("altitude", &v)
}

// AirSpeed returns the speed in knots, only when the feed flagged it valid.
func (r Report) AirSpeed() (int, bool) {
	return r.flaggedInt("air_speed", "air_speed_valid")
}

// VerticalRate returns the vertical rate in ft/min, only when flagged valid.
func (r Report) VerticalRate() (int, bool) {
	return r.flaggedInt("vertical_rate", "vertical_rate_valid")
}

func (r Report) flaggedInt(name, flag string) (int, bool) {
	var valid bool
	if !r.attribute(flag, &valid) || !valid {
		return 0, false
	}
	var v int
	return v, r.attribute(name, &v)
}

func (r Report) attribute(name string, dst interface{}) bool {
	raw, ok := r.Attributes[name]
	if !ok || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// MarshalJSON renders the report back into its wire form.
func (r Report) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Attributes)+3)
	for k, v := range r.Attributes {
		fields[k] = v
	}

	address, err := json.Marshal(string(r.ID))
	if err != nil {
		return nil, err
	}
	fields[fieldAddress] = address

	for _, name := range []string{fieldLatitude, fieldLongitude} {
		if _, ok := fields[name]; !ok {
			fields[name] = json.RawMessage("null")
		}
	}
	if r.Location != nil {
		if fields[fieldLatitude], err = json.Marshal(r.Location.Latitude); err != nil {
			return nil, err
		}
		if fields[fieldLongitude], err = json.Marshal(r.Location.Longitude); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

// AttributeNames lists the pass-through attribute names in sorted order.
func (r Report) AttributeNames() []string {
	names := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
