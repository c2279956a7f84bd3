package checkpoint

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// maxContainerSize bounds the decompressed container to guard against
// malformed or hostile gzip streams.
const maxContainerSize = 256 << 20

// container is the on-disk layout. Both keys are mandatory.
type container struct {
	Metadata Metadata `json:"metadata"`
	Payload  Payload  `json:"payload"`
}

// encode serializes c as gzip-compressed JSON.
func encode(c *Checkpoint) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(container{Metadata: c.Metadata, Payload: c.Payload}); err != nil {
		gz.Close()
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode decompresses and validates a container. Errors are plain; the store
// wraps them in a CorruptionError.
func decode(blob []byte) (*Checkpoint, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty checkpoint blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(io.LimitReader(gz, maxContainerSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress checkpoint: %w", err)
	}
	if len(raw) > maxContainerSize {
		return nil, fmt.Errorf("checkpoint exceeds %d bytes", maxContainerSize)
	}

	raw = nullNonFinite(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	for _, key := range []string{"metadata", "payload"} {
		if v, ok := top[key]; !ok || isNull(v) {
			return nil, fmt.Errorf("missing top-level key %q", key)
		}
	}

	c := &Checkpoint{}
	if err := json.Unmarshal(top["metadata"], &c.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal(top["payload"], &c.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	if c.Metadata.IsNorm == nil {
		c.Schema = SchemaLegacy
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func validate(c *Checkpoint) error {
	seen := make(map[int]bool, len(c.Payload.CrossVal))
	for i, rec := range c.Payload.CrossVal {
		if seen[rec.ModelIdx] {
			return fmt.Errorf("cross_val[%d]: duplicate model_idx %d", i, rec.ModelIdx)
		}
		seen[rec.ModelIdx] = true
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}

// Cross-validation can yield NaN metrics (a constant fold has no
// correlation). JSON has no NaN, so non-finite metrics are written as null
// and null reads back as NaN.
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *nullableFloat) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*f = nullableFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = nullableFloat(v)
	return nil
}

type modelRecordJSON struct {
	ModelIdx     int           `json:"model_idx"`
	Coefficients []float64     `json:"coefficients"`
	MAE          nullableFloat `json:"mae"`
	RMSE         nullableFloat `json:"rmse"`
	Corr         nullableFloat `json:"corr"`
}

// MarshalJSON writes non-finite metrics as null.
func (r ModelRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelRecordJSON{
		ModelIdx:     r.ModelIdx,
		Coefficients: r.Coefficients,
		MAE:          nullableFloat(r.MAE),
		RMSE:         nullableFloat(r.RMSE),
		Corr:         nullableFloat(r.Corr),
	})
}

// UnmarshalJSON reads null metrics as NaN.
func (r *ModelRecord) UnmarshalJSON(b []byte) error {
	var w modelRecordJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = ModelRecord{
		ModelIdx:     w.ModelIdx,
		Coefficients: w.Coefficients,
		MAE:          float64(w.MAE),
		RMSE:         float64(w.RMSE),
		Corr:         float64(w.Corr),
	}
	return nil
}

type metricsJSON struct {
	MAE  nullableFloat `json:"MAE"`
	RMSE nullableFloat `json:"RMSE"`
	Corr nullableFloat `json:"Corr"`
}

// MarshalJSON writes non-finite metrics as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{MAE: nullableFloat(m.MAE), RMSE: nullableFloat(m.RMSE), Corr: nullableFloat(m.Corr)})
}

// UnmarshalJSON reads null metrics as NaN.
func (m *Metrics) UnmarshalJSON(b []byte) error {
	var w metricsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Metrics{MAE: float64(w.MAE), RMSE: float64(w.RMSE), Corr: float64(w.Corr)}
	return nil
}

var nonFiniteTokens = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nullNonFinite rewrites the bare NaN and Infinity tokens that Python's json
// module emits into null. Text inside strings is left alone.
func nullNonFinite(raw []byte) []byte {
	if !bytes.Contains(raw, []byte("NaN")) && !bytes.Contains(raw, []byte("Infinity")) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		matched := false
		for _, tok := range nonFiniteTokens {
			if bytes.HasPrefix(raw[i:], tok) {
				out = append(out, "null"...)
				i += len(tok) - 1
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, c)
		}
	}
	return out
}
