// Package executor applies one confirmed operator decision to every
// ingredient in a pattern group: optional catalog mutation first, then a
// bounded fan-out of ingredient updates, producing a single Result however
// the individual updates fare.
package executor

import (
	"time"

	"github.com/kitchenops/mealgroom/internal/pattern"
)

// OpKind is the closed set of operator decisions.
type OpKind string

const (
	OpCreateUnit   OpKind = "create_unit"
	OpCreateFood   OpKind = "create_food"
	OpAddFoodAlias OpKind = "add_food_alias"
	OpAddUnitAlias OpKind = "add_unit_alias"
)

// Operation is one confirmed decision for one pattern group.
type Operation struct {
	Kind      OpKind
	PatternID string

	// Name, Abbreviation and Description describe the entity to create
	// for the create kinds.
	Name         string
	Abbreviation string
	Description  string

	// TargetID and Alias drive the alias kinds.
	TargetID string
	Alias    string

	// Affected lists the ingredients to rewrite, in pattern order.
	Affected []pattern.Ref
}

// FinalStatus classifies a Result.
type FinalStatus string

const (
	// StatusAllOK: every ingredient update succeeded.
	StatusAllOK FinalStatus = "all_ok"
	// StatusPartial: some updates succeeded and some failed.
	StatusPartial FinalStatus = "partial"
	// StatusAborted: preflight or catalog mutation failed; no ingredient
	// was touched, or the fan-out never started.
	StatusAborted FinalStatus = "aborted"
)

// Failure records one ingredient that could not be updated.
type Failure struct {
	Ref     pattern.Ref
	Kind    string
	Message string
}

// Result is the outcome of executing one Operation.
type Result struct {
	Op              Operation
	CreatedEntityID string
	// CreatedNew is false when a conflict was reconciled against an
	// entity that already existed, so the session must not count it.
	CreatedNew bool
	Succeeded  []pattern.Ref
	Failed     []Failure
	Duration   time.Duration
	Status     FinalStatus
	// AbortReason explains an aborted result to the operator.
	AbortReason string
	// AbortErr is the underlying abort cause, kept so the orchestrator
	// can detect fatal auth failures. Not serialized.
	AbortErr error
}

// ProgressEvent is published once per completed ingredient update.
type ProgressEvent struct {
	Done  int
	Total int
	Ref   pattern.Ref
	Err   error
}
