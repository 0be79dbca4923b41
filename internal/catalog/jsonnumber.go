package catalog

import (
	"encoding/json"
	"strconv"
)

// jsonNumber decodes a field the Gamma API sometimes sends as a JSON
// number and sometimes as a decimal string, into a float64.
type jsonNumber float64

func (n *jsonNumber) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*n = jsonNumber(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = jsonNumber(f)
	case nil:
		*n = 0
	}
	return nil
}

func (n jsonNumber) Float64() float64 { return float64(n) }
