package graph

import (
	"runtime"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

// Default engine parameters.
const (
	// DefaultMinSimilarity is the inclusive lower bound for creating an edge.
	DefaultMinSimilarity = 0.15

	// DefaultMaxPathLength is the maximum number of hops a reported path may have.
	DefaultMaxPathLength = 5

	DefaultConceptWeight = 0.5
	DefaultKeywordWeight = 0.3
	DefaultTypeBonus     = 0.2

	// Two-hop blending: combined = DirectWeight*sim(s,m) + HopWeight*sim(m,t).
	DefaultDirectWeight = 0.7
	DefaultHopWeight    = 0.3

	// Importance: ConnectionWeight*connections + TypePriorityWeight*typePriority.
	DefaultConnectionWeight   = 0.7
	DefaultTypePriorityWeight = 0.3

	// The important subset is max(DefaultMinImportant, ceil(DefaultImportantFraction*N)).
	DefaultMinImportant      = 5
	DefaultImportantFraction = 0.2
)

// Settings carries every tunable of the engine. Components receive it
// explicitly so alternate thresholds can be used side by side.
type Settings struct {
	MinSimilarity float64
	MaxPathLength int

	ConceptWeight float64
	KeywordWeight float64
	TypeBonus     float64

	DirectWeight float64
	HopWeight    float64

	ConnectionWeight   float64
	TypePriorityWeight float64
	TypePriority       map[document.Type]float64

	MinImportant      int
	ImportantFraction float64

	// Workers bounds the goroutines used for pair scoring and path search.
	// 1 runs everything on the calling goroutine.
	Workers int
}

// DefaultTypePriority returns the type priorities used for importance ranking
func DefaultTypePriority() map[document.Type]float64 {
	return map[document.Type]float64{
		document.TypeRule:          3,
		document.TypeDocumentation: 2,
		document.TypeSource:        1,
	}
}

// DefaultSettings returns the engine defaults
func DefaultSettings() Settings {
	return Settings{
		MinSimilarity:      DefaultMinSimilarity,
		MaxPathLength:      DefaultMaxPathLength,
		ConceptWeight:      DefaultConceptWeight,
		KeywordWeight:      DefaultKeywordWeight,
		TypeBonus:          DefaultTypeBonus,
		DirectWeight:       DefaultDirectWeight,
		HopWeight:          DefaultHopWeight,
		ConnectionWeight:   DefaultConnectionWeight,
		TypePriorityWeight: DefaultTypePriorityWeight,
		TypePriority:       DefaultTypePriority(),
		MinImportant:       DefaultMinImportant,
		ImportantFraction:  DefaultImportantFraction,
		Workers:            1,
	}
}

// Validate replaces out-of-range values with their defaults
func (s *Settings) Validate() {
	if s.MinSimilarity < 0 || s.MinSimilarity > 1 {
		s.MinSimilarity = DefaultMinSimilarity
	}
	if s.MaxPathLength <= 0 {
		s.MaxPathLength = DefaultMaxPathLength
	}
	if s.ConceptWeight < 0 {
		s.ConceptWeight = DefaultConceptWeight
	}
	if s.KeywordWeight < 0 {
		s.KeywordWeight = DefaultKeywordWeight
	}
	if s.TypeBonus < 0 {
		s.TypeBonus = DefaultTypeBonus
	}
	if s.DirectWeight < 0 {
		s.DirectWeight = DefaultDirectWeight
	}
	if s.HopWeight < 0 {
		s.HopWeight = DefaultHopWeight
	}
	if s.ConnectionWeight < 0 {
		s.ConnectionWeight = DefaultConnectionWeight
	}
	if s.TypePriorityWeight < 0 {
		s.TypePriorityWeight = DefaultTypePriorityWeight
	}
	if s.TypePriority == nil {
		s.TypePriority = DefaultTypePriority()
	}
	if s.MinImportant < 0 {
		s.MinImportant = DefaultMinImportant
	}
	if s.ImportantFraction < 0 || s.ImportantFraction > 1 {
		s.ImportantFraction = DefaultImportantFraction
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.Workers > runtime.NumCPU()*4 {
		s.Workers = runtime.NumCPU() * 4
	}
}
