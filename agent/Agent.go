// Package agent defines the policies which select actions in
// environments
package agent

import (
	"github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. A Policy in evaluation
// mode should act as it would when its performance is measured.
type Policy interface {
	SelectAction(t timestep.TimeStep) *mat.VecDense
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Seeder is a Policy whose randomness can be reseeded
type Seeder interface {
	Policy
	Seed(uint64)
}
