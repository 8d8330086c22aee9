package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/pkg/models"
)

// ParseReading extracts a temperature from {"temperature": x} or a bare number.
// Malformed payloads return an error wrapping hybrid.ErrInvalidInput.
func ParseReading(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty payload", hybrid.ErrInvalidInput)
	}

	if data[0] == '{' {
		var req models.ReadingRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return 0, fmt.Errorf("%w: %v", hybrid.ErrInvalidInput, err)
		}
		if req.Temperature == nil {
			return 0, fmt.Errorf("%w: temperature is required", hybrid.ErrInvalidInput)
		}
		return *req.Temperature, nil
	}

	t, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: payload is neither an object nor a number", hybrid.ErrInvalidInput)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("%w: temperature must be finite", hybrid.ErrInvalidInput)
	}
	return t, nil
}
