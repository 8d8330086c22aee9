package detector

import (
	"errors"
	"testing"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		wantErr bool
	}{
		{name: "object", payload: `{"temperature": -21.25}`, want: -21.25},
		{name: "object with extra fields", payload: `{"sensor":"freezer-3","temperature":-19}`, want: -19},
		{name: "bare number", payload: "-18.5", want: -18.5},
		{name: "padded number", payload: "  -22\n", want: -22},
		{name: "empty", payload: "", wantErr: true},
		{name: "missing field", payload: `{"temp": -20}`, wantErr: true},
		{name: "null", payload: `{"temperature": null}`, wantErr: true},
		{name: "string value", payload: `{"temperature": "-20"}`, wantErr: true},
		{name: "garbage", payload: "cold", wantErr: true},
		{name: "nan", payload: "NaN", wantErr: true},
		{name: "inf", payload: "-Inf", wantErr: true},
		{name: "truncated object", payload: `{"temperature": -2`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReading([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, hybrid.ErrInvalidInput) {
					t.Fatalf("ParseReading(%q) error = %v, want ErrInvalidInput", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReading(%q) error = %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseReading(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}
