// Package cohort implements the Cohort Schema Engine (C2): ordered
// JSON-logic predicates (checkpoints + groups) over a single cohort
// dimension's value space, with the insert/reprioritise invariants from
// §4.2 of the release orchestration spec.
//
// Grounded on the Rust handlers in
// organisation/application/dimension/cohort.rs: the checkpoint-insert
// fold over (last_index_of_group, last_checkpoint) and the dual-comparator
// rewrite are carried across verbatim.
package cohort

import (
	"fmt"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// Comparator is the user-facing checkpoint operator (§4.2 step (name,
// value, comparator)).
type Comparator string

const (
	ComparatorSemVerGt Comparator = "SemVerGt"
	ComparatorSemVerGe Comparator = "SemVerGe"
	ComparatorStrGt    Comparator = "StrGt"
	ComparatorStrGe    Comparator = "StrGe"
)

// dualComparator maps a checkpoint's lower-bound comparator to the upper
// bound rewritten onto the previous checkpoint (Gt->Le, Ge->Lt).
var dualComparator = map[Comparator]domain.Operator{
	ComparatorSemVerGt: domain.OpSemVerLe,
	ComparatorSemVerGe: domain.OpSemVerLt,
	ComparatorStrGt:    domain.OpStrLe,
	ComparatorStrGe:    domain.OpStrLt,
}

func (c Comparator) operator() domain.Operator {
	switch c {
	case ComparatorSemVerGt:
		return domain.OpSemVerGt
	case ComparatorSemVerGe:
		return domain.OpSemVerGe
	case ComparatorStrGt:
		return domain.OpStrGt
	case ComparatorStrGe:
		return domain.OpStrGe
	}
	return ""
}

// Engine operates on a single CohortSchema, mutating it in place and
// persisting through the supplied store (typically the config service's
// dimension schema, via internal/configservice).
type Engine struct {
	store SchemaStore
}

// SchemaStore is the narrow persistence/invalidation interface the cohort
// engine depends on — the external config service's dimension schema plus
// the CDN invalidation hook (§4.8).
type SchemaStore interface {
	Load(org, app, dimensionName string) (*domain.CohortSchema, string, error) // schema, depends_on
	Save(org, app, dimensionName string, schema *domain.CohortSchema, changeReason string) error
	InvalidateCDN(org, app string)
}

// New builds a cohort Engine over store.
func New(store SchemaStore) *Engine {
	return &Engine{store: store}
}

// InsertCheckpoint implements §4.2 "Checkpoint insert".
func (e *Engine) InsertCheckpoint(org, app, dimensionName string, name domain.CohortName, value string, comparator Comparator) error {
	schema, dependsOn, err := e.store.Load(org, app, dimensionName)
	if err != nil {
		return err
	}

	if err := insertCheckpoint(schema, dependsOn, name, value, comparator); err != nil {
		return err
	}

	if err := e.store.Save(org, app, dimensionName, schema, "Added cohort checkpoint via API"); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	e.store.InvalidateCDN(org, app)
	return nil
}

// insertCheckpoint is the pure algorithmic core, grounded on
// create_cohort_checkpoint_api in cohort.rs.
func insertCheckpoint(schema *domain.CohortSchema, dependsOn string, name domain.CohortName, value string, comparator Comparator) error {
	if schema.IsEmpty() {
		schema.DropDefault()
	}

	for _, existing := range schema.Enum {
		if existing == name {
			return fmt.Errorf("%w: cohort %q already exists", domainerrors.ErrBadRequest, name)
		}
	}

	op := comparator.operator()
	if op == "" {
		return fmt.Errorf("%w: unknown comparator %q", domainerrors.ErrBadRequest, comparator)
	}

	// Locate last_index_of_group (largest index whose top-level operator
	// is In) and last_checkpoint (first entry after that whose top-level
	// operator is not In) via a single left-to-right fold, exactly as the
	// Rust implementation does.
	var lastIndexOfGroup = -1
	var lastCheckpoint domain.CohortName
	haveLastIndexOfGroup := false
	haveLastCheckpoint := false

	for idx, cohortName := range schema.Enum {
		def, ok := schema.Definitions[cohortName]
		if !ok {
			continue
		}
		switch {
		case def.Operator == domain.OpIn:
			lastIndexOfGroup = idx
			haveLastIndexOfGroup = true
		case !haveLastCheckpoint:
			lastCheckpoint = cohortName
			haveLastCheckpoint = true
		}
	}

	newClause := domain.Clause{
		Operator: op,
		Operands: []any{domain.Var{Name: dependsOn}, value},
	}
	schema.Definitions[name] = newClause

	insertAt := 0
	if haveLastIndexOfGroup {
		insertAt = lastIndexOfGroup + 1
	}
	schema.Enum = insertEnum(schema.Enum, insertAt, name)

	if haveLastCheckpoint {
		dual := dualComparator[comparator]
		existing, ok := schema.Definitions[lastCheckpoint]
		if ok {
			upper := domain.Clause{
				Operator: dual,
				Operands: []any{domain.Var{Name: dependsOn}, value},
			}
			schema.Definitions[lastCheckpoint] = domain.Clause{
				Operator: domain.OpAnd,
				Operands: []any{existing, upper},
			}
		}
	}

	return nil
}

// InsertGroup implements §4.2 "Group insert": always inserted at index 0.
func (e *Engine) InsertGroup(org, app, dimensionName string, name domain.CohortName, members []string) error {
	schema, dependsOn, err := e.store.Load(org, app, dimensionName)
	if err != nil {
		return err
	}

	if err := insertGroup(schema, dependsOn, name, members); err != nil {
		return err
	}

	if err := e.store.Save(org, app, dimensionName, schema, "Added cohort group via API"); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	e.store.InvalidateCDN(org, app)
	return nil
}

func insertGroup(schema *domain.CohortSchema, dependsOn string, name domain.CohortName, members []string) error {
	if schema.IsEmpty() {
		schema.DropDefault()
	}
	for _, existing := range schema.Enum {
		if existing == name {
			return fmt.Errorf("%w: cohort %q already exists", domainerrors.ErrBadRequest, name)
		}
	}

	schema.Definitions[name] = domain.Clause{
		Operator: domain.OpIn,
		Operands: []any{domain.Var{Name: dependsOn}, members},
	}
	schema.Enum = insertEnum(schema.Enum, 0, name)
	return nil
}

// GetPriority returns the current enum-index of every group (In-typed)
// cohort, per §4.2 get_cohort_priority.
func GetPriority(schema *domain.CohortSchema) map[domain.CohortName]int {
	out := make(map[domain.CohortName]int)
	for idx, name := range schema.Enum {
		if def, ok := schema.Definitions[name]; ok && def.Operator == domain.OpIn {
			out[name] = idx
		}
	}
	return out
}

// UpdatePriority implements §4.2 "Priority update": only In-typed entries
// are reorderable, new priorities must lie in [0, |In-cohorts|-1], and the
// relative order of non-In entries is preserved.
func (e *Engine) UpdatePriority(org, app, dimensionName string, priorities map[domain.CohortName]int) error {
	schema, _, err := e.store.Load(org, app, dimensionName)
	if err != nil {
		return err
	}

	if err := updatePriority(schema, priorities); err != nil {
		return err
	}

	if err := e.store.Save(org, app, dimensionName, schema, "Updated cohort priority via API"); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	e.store.InvalidateCDN(org, app)
	return nil
}

func updatePriority(schema *domain.CohortSchema, priorities map[domain.CohortName]int) error {
	current := GetPriority(schema)

	for name, newPriority := range priorities {
		if newPriority < 0 || newPriority > len(current)-1 {
			return fmt.Errorf("%w: invalid priority %d for cohort %q, must be between 0 and %d",
				domainerrors.ErrBadRequest, newPriority, name, len(current)-1)
		}
	}

	for name, newPriority := range priorities {
		idx := indexOf(schema.Enum, name)
		if idx < 0 {
			continue
		}
		schema.Enum = removeEnum(schema.Enum, idx)
		insertAt := newPriority
		if insertAt > len(schema.Enum) {
			insertAt = len(schema.Enum)
		}
		schema.Enum = insertEnum(schema.Enum, insertAt, name)
	}

	return nil
}

func insertEnum(enum []domain.CohortName, at int, name domain.CohortName) []domain.CohortName {
	out := make([]domain.CohortName, 0, len(enum)+1)
	out = append(out, enum[:at]...)
	out = append(out, name)
	out = append(out, enum[at:]...)
	return out
}

func removeEnum(enum []domain.CohortName, at int) []domain.CohortName {
	out := make([]domain.CohortName, 0, len(enum)-1)
	out = append(out, enum[:at]...)
	out = append(out, enum[at+1:]...)
	return out
}

func indexOf(enum []domain.CohortName, name domain.CohortName) int {
	for i, n := range enum {
		if n == name {
			return i
		}
	}
	return -1
}
