package face

// Similarity is the cosine similarity of a and b clamped to [0, 1]. Vectors
// of different length or with zero norm score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := vectorNorm(a), vectorNorm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (na * nb)
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}

// Template is an enrolled embedding together with its owner.
type Template struct {
	EmployeeID string
	Name       string
	Embedding  []float32
}

type Match struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Matcher picks the best template for a probe. A template only qualifies
// when its similarity is strictly greater than Threshold.
type Matcher struct {
	Threshold float64
}

func NewMatcher(threshold float64) Matcher {
	return Matcher{Threshold: threshold}
}

func (m Matcher) IsMatch(similarity float64) bool {
	return similarity > m.Threshold
}

// Best scans every template and returns the highest qualifying one.
func (m Matcher) Best(probe []float32, templates []Template) (Template, float64, bool) {
	var (
		best      Template
		bestScore float64
		found     bool
	)
	for _, t := range templates {
		sim := Similarity(probe, t.Embedding)
		if sim > bestScore && m.IsMatch(sim) {
			best, bestScore, found = t, sim, true
		}
	}
	return best, bestScore, found
}
