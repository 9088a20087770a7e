package dataset

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Vehicles: []Vehicle{
			{ID: "v1", OwnerName: "Ana Novak", Engine: "1.9 TDI", Year: 2004, ChassisID: "WVWZZZ1JZ4W000001"},
			{ID: "v2", OwnerName: "Marko Kos", Engine: "2.0 TSI", Year: 2018, ChassisID: "WVWZZZAUZJW000002"},
		},
		Services: []Service{
			{ID: "s1", VehicleID: "v1", ServiceName: "Oil change", Mileage: 210000, Date: "2024-03-01", Notes: "5W-40"},
			{ID: "s2", VehicleID: "gone", ServiceName: "Brakes", Mileage: 0, Date: "2024-04-12"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, d := range map[string]Dataset{
		"sample": sample(),
		"empty":  Empty(),
		"nil":    {},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Encode(d)
			require.NoError(t, err)

			got, err := Decode(string(out))
			require.NoError(t, err)
			if diff := cmp.Diff(d, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_Format(t *testing.T) {
	out, err := Encode(Dataset{})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"vehicles\": [],\n  \"services\": []\n}\n", string(out))

	out, err = Encode(sample())
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "\n    {\n      \"id\": \"v1\",")
	assert.Contains(t, text, `"chassisId": "WVWZZZ1JZ4W000001"`)
	assert.Equal(t, 1, strings.Count(text, `"notes"`), "empty notes are omitted")
}

func TestDecode_Lenient(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Dataset
	}{
		{"blank", "", Empty()},
		{"whitespace", " \n\t", Empty()},
		{"empty object", "{}", Empty()},
		{"null keys", `{"vehicles":null,"services":null}`, Empty()},
		{"missing services", `{"vehicles":[{"id":"v1","year":2001}]}`, Dataset{
			Vehicles: []Vehicle{{ID: "v1", Year: 2001}},
			Services: []Service{},
		}},
		{"unknown keys", `{"version":3,"services":[{"id":"s1","mileage":5}]}`, Dataset{
			Vehicles: []Vehicle{},
			Services: []Service{{ID: "s1", Mileage: 5}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"truncated":       `{"vehicles":[{"id":"v1"`,
		"array top level": `[]`,
		"string":          `"hello"`,
		"vehicles object": `{"vehicles":{}}`,
		"wrong field":     `{"vehicles":[{"year":"old"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(text)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestDecodeStrict_RejectsBlank(t *testing.T) {
	_, err := DecodeStrict("  ")
	assert.ErrorIs(t, err, ErrMalformed)

	got, err := DecodeStrict(`{"vehicles":[],"services":[]}`)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestClone(t *testing.T) {
	d := sample()
	c := d.Clone()
	c.Vehicles[0].OwnerName = "changed"
	assert.Equal(t, "Ana Novak", d.Vehicles[0].OwnerName)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestNewID_IncreasesOverTime(t *testing.T) {
	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		require.Greater(t, next, prev)
		prev = next
	}
}
