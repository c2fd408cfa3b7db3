package problem

import (
	"codegame/internal/model"

	mapset "github.com/deckarep/golang-set/v2"
)

// FleetProblems reports the problems the sandbox fleet can judge.
type FleetProblems interface {
	Problems() []string
}

// Source intersects the local catalog with the fleet.
type Source struct {
	Catalog *Catalog
	Fleet   FleetProblems
}

// AvailableProblems returns catalog problems the fleet can judge, in name order.
func (s Source) AvailableProblems() []model.Problem {
	judgeable := mapset.NewThreadUnsafeSet(s.Fleet.Problems()...)
	var out []model.Problem
	for _, name := range s.Catalog.Names() {
		if !judgeable.Contains(name) {
			continue
		}
		if p, ok := s.Catalog.Get(name); ok {
			out = append(out, p)
		}
	}
	return out
}
