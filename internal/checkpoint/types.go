package checkpoint

// Params is the fitting configuration recorded by the estimator.
type Params struct {
	Nork    int `json:"nork"`
	Nvec    int `json:"nvec"`
	ModelID int `json:"model_id"`
}

// Metrics summarises the cross-validation of the best fitted model.
type Metrics struct {
	MAE  float64 `json:"MAE"`
	RMSE float64 `json:"RMSE"`
	Corr float64 `json:"Corr"`
}

// Metadata describes how and when a checkpoint was produced.
type Metadata struct {
	Params Params `json:"params"`
	// IsNorm is nil for checkpoints written before normalization was tracked.
	IsNorm    *bool   `json:"isnorm,omitempty"`
	NPoints   int     `json:"n_points"`
	CreatedAt string  `json:"created_at"`
	Metrics   Metrics `json:"metrics"`
}

// ModelRecord is one cross-validated candidate model.
type ModelRecord struct {
	ModelIdx     int       `json:"model_idx"`
	Coefficients []float64 `json:"coefficients"`
	MAE          float64   `json:"mae"`
	RMSE         float64   `json:"rmse"`
	Corr         float64   `json:"corr"`
}

// Clone returns a copy that shares no memory with r.
func (r ModelRecord) Clone() ModelRecord {
	out := r
	if r.Coefficients != nil {
		out.Coefficients = append([]float64(nil), r.Coefficients...)
	}
	return out
}

// Payload carries the source description and the candidate models.
type Payload struct {
	Title    string        `json:"title"`
	XCol     string        `json:"x_col"`
	YCol     string        `json:"y_col"`
	ZCol     string        `json:"z_col"`
	CrossVal []ModelRecord `json:"cross_val"`
}

// Schema identifies the checkpoint layout generation.
type Schema int

const (
	// SchemaCurrent checkpoints record the normalization state.
	SchemaCurrent Schema = iota
	// SchemaLegacy checkpoints predate the isnorm field.
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return "legacy"
	}
	return "current"
}

// Normalization is the tri-state normalization flag of a checkpoint.
type Normalization int

const (
	NormUnknown Normalization = iota
	NormRaw
	NormNormalized
)

// Flag renders the normalization as the single-letter code used in listings.
func (n Normalization) Flag() string {
	switch n {
	case NormNormalized:
		return "Y"
	case NormRaw:
		return "N"
	default:
		return "?"
	}
}

func (n Normalization) String() string {
	switch n {
	case NormNormalized:
		return "normalized"
	case NormRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Checkpoint is a loaded, validated container. Treat it as read-only.
type Checkpoint struct {
	Metadata Metadata `json:"metadata"`
	Payload  Payload  `json:"payload"`

	// Schema is derived at load time and never serialized.
	Schema Schema `json:"-"`
}

// Normalization reports the tri-state isnorm flag without coercing an absent
// value to false.
func (c *Checkpoint) Normalization() Normalization {
	switch {
	case c.Metadata.IsNorm == nil:
		return NormUnknown
	case *c.Metadata.IsNorm:
		return NormNormalized
	default:
		return NormRaw
	}
}

// Len returns the number of candidate models.
func (c *Checkpoint) Len() int { return len(c.Payload.CrossVal) }
