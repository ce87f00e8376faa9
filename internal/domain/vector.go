package domain

// VectorRecord is one stored artifact: its id, embedding, flat string
// metadata and serialized payload.
type VectorRecord struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata"`
	Document  string            `json:"document"`
}

// VectorHit is a query match. Distance is smaller for closer matches.
type VectorHit struct {
	VectorRecord
	Distance float64 `json:"distance"`
}
