// Package dataset defines the shop's persisted document and its JSON codec.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when text is not a dataset document.
var ErrMalformed = errors.New("malformed dataset")

// Vehicle is a car registered with the shop.
type Vehicle struct {
	ID        string `json:"id" validate:"required"`
	OwnerName string `json:"ownerName" validate:"required"`
	Engine    string `json:"engine" validate:"required"`
	Year      int    `json:"year" validate:"required"`
	ChassisID string `json:"chassisId" validate:"required"`
}

// Service is one job performed on a vehicle. VehicleID may dangle.
type Service struct {
	ID          string `json:"id" validate:"required"`
	VehicleID   string `json:"vehicleId" validate:"required"`
	ServiceName string `json:"serviceName" validate:"required"`
	Mileage     int    `json:"mileage" validate:"min=0"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Notes       string `json:"notes,omitempty"`
}

// Dataset is the unit of persistence.
type Dataset struct {
	Vehicles []Vehicle `json:"vehicles"`
	Services []Service `json:"services"`
}

// Empty returns a dataset with non-nil empty slices.
func Empty() Dataset {
	return Dataset{Vehicles: []Vehicle{}, Services: []Service{}}
}

// IsEmpty reports whether d holds no records.
func (d Dataset) IsEmpty() bool {
	return len(d.Vehicles) == 0 && len(d.Services) == 0
}

// Clone returns a copy that shares no slices with d.
func (d Dataset) Clone() Dataset {
	out := Empty()
	out.Vehicles = append(out.Vehicles, d.Vehicles...)
	out.Services = append(out.Services, d.Services...)
	return out
}

// NewID returns a fresh record id. Ids are UUIDv7, so later ids sort
// after earlier ones.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// =============================================================================
// Codec
// =============================================================================

// Encode renders d as 2-space indented JSON with a trailing newline.
// Nil slices are written as empty arrays.
func Encode(d Dataset) ([]byte, error) {
	if d.Vehicles == nil {
		d.Vehicles = []Vehicle{}
	}
	if d.Services == nil {
		d.Services = []Service{}
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return append(out, '\n'), nil
}

// Decode parses a dataset document. Blank text is an empty dataset.
// Missing or null top-level keys decode as empty arrays; unknown keys
// are ignored. Anything that is not a JSON object is ErrMalformed.
func Decode(text string) (Dataset, error) {
	if strings.TrimSpace(text) == "" {
		return Empty(), nil
	}
	return decodeDocument(text)
}

// DecodeStrict is Decode for files the user picked explicitly: blank
// text is also ErrMalformed.
func DecodeStrict(text string) (Dataset, error) {
	if strings.TrimSpace(text) == "" {
		return Empty(), fmt.Errorf("empty document: %w", ErrMalformed)
	}
	return decodeDocument(text)
}

func decodeDocument(text string) (Dataset, error) {
	if !gjson.Valid(text) {
		return Empty(), fmt.Errorf("invalid JSON: %w", ErrMalformed)
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return Empty(), fmt.Errorf("top level is %s, not an object: %w", doc.Type, ErrMalformed)
	}

	d := Empty()
	fields := doc.Map()
	if v, ok := fields["vehicles"]; ok && v.Type != gjson.Null {
		if err := decodeArray(v, "vehicles", &d.Vehicles); err != nil {
			return Empty(), err
		}
	}
	if v, ok := fields["services"]; ok && v.Type != gjson.Null {
		if err := decodeArray(v, "services", &d.Services); err != nil {
			return Empty(), err
		}
	}
	return d, nil
}

func decodeArray[T any](v gjson.Result, key string, dst *[]T) error {
	if !v.IsArray() {
		return fmt.Errorf("%s is %s, not an array: %w", key, v.Type, ErrMalformed)
	}
	var items []T
	if err := json.Unmarshal([]byte(v.Raw), &items); err != nil {
		return fmt.Errorf("%s: %v: %w", key, err, ErrMalformed)
	}
	if items != nil {
		*dst = items
	}
	return nil
}
