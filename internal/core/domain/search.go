package domain

// Search defaults.
const (
	// DefaultSearchLimit is the result cap when none is given.
	DefaultSearchLimit = 10

	// DefaultSimilarityThreshold is the minimum score when none is given.
	DefaultSimilarityThreshold = 0.7
)

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// Limit is the maximum number of results. Zero means DefaultSearchLimit.
	Limit int

	// Threshold is the inclusive minimum similarity. Nil means DefaultSimilarityThreshold.
	Threshold *float64

	// Kinds filters results to the given content kinds. Empty means all.
	Kinds []ContentKind
}

// Validate rejects negative limits and thresholds outside [0, 1].
func (o SearchOptions) Validate() error {
	if o.Limit < 0 {
		return &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if o.Threshold != nil && (*o.Threshold < 0 || *o.Threshold > 1) {
		return &ValidationError{Field: "similarity_threshold", Reason: "must be within [0, 1]"}
	}
	for _, k := range o.Kinds {
		if !k.IsValid() {
			return &ValidationError{Field: "kinds", Reason: "unknown content kind " + string(k)}
		}
	}
	return nil
}

// EffectiveLimit returns the limit with the default applied.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit == 0 {
		return DefaultSearchLimit
	}
	return o.Limit
}

// EffectiveThreshold returns the threshold with the default applied.
func (o SearchOptions) EffectiveThreshold() float64 {
	if o.Threshold == nil {
		return DefaultSimilarityThreshold
	}
	return *o.Threshold
}

// MatchesKind reports whether a chunk of the given kind passes the kind filter.
// A text filter also admits documents, as listing text items does.
func (o SearchOptions) MatchesKind(kind ContentKind) bool {
	if len(o.Kinds) == 0 {
		return true
	}
	for _, k := range o.Kinds {
		if k.Covers(kind) {
			return true
		}
	}
	return false
}

// SearchResult is a ranked similarity hit.
type SearchResult struct {
	ChunkID    int64
	Content    ContentRef
	ChunkIndex int
	ChunkText  string
	Similarity float64

	// DisplayName is the file name or text title of the owning item.
	DisplayName string
}

// Threshold returns a pointer to v, for SearchOptions literals.
func Threshold(v float64) *float64 {
	return &v
}
