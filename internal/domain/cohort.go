package domain

// Operator is the closed enum of JSON-logic operators a cohort definition
// may use. Decoding a stored schema (internal/configservice) fails on a
// definition whose top-level operator is not in ValidOperators; a nested
// operand whose operator is unknown is kept as its raw map and does not
// fail decoding.
type Operator string

const (
	OpIn        Operator = "In"
	OpStrGt     Operator = "StrGt"
	OpStrGe     Operator = "StrGe"
	OpStrLt     Operator = "StrLt"
	OpStrLe     Operator = "StrLe"
	OpSemVerGt  Operator = "SemVerGt"
	OpSemVerGe  Operator = "SemVerGe"
	OpSemVerLt  Operator = "SemVerLt"
	OpSemVerLe  Operator = "SemVerLe"
	OpAnd       Operator = "And"
)

// ValidOperators enumerates every operator the cohort engine understands.
var ValidOperators = map[Operator]bool{
	OpIn: true, OpStrGt: true, OpStrGe: true, OpStrLt: true, OpStrLe: true,
	OpSemVerGt: true, OpSemVerGe: true, OpSemVerLt: true, OpSemVerLe: true,
	OpAnd: true,
}

// Clause is a single JSON-logic node: {operator: operands}. A comparator
// clause has operands [{var: depends_on}, value]; an In clause has
// operands [{var: depends_on}, members]; an And clause has operands
// [clause, clause].
type Clause struct {
	Operator Operator
	Operands []any
}

// Var is the JSON-logic {"var": name} leaf referencing the dependent
// dimension's value.
type Var struct {
	Name string
}

// CohortName identifies one entry in a CohortSchema's enum.
type CohortName string

// ReservedDefaultCohort is present only when a CohortSchema is empty; it is
// removed on the first real insert (§3).
const ReservedDefaultCohort CohortName = "default"

// CohortSchema is the per-cohort-dimension set of ordered named predicates.
type CohortSchema struct {
	Enum        []CohortName
	Definitions map[CohortName]Clause
}

// NewEmptyCohortSchema returns a schema containing only the reserved
// default cohort.
func NewEmptyCohortSchema() *CohortSchema {
	return &CohortSchema{
		Enum: []CohortName{ReservedDefaultCohort},
		Definitions: map[CohortName]Clause{
			ReservedDefaultCohort: {Operator: OpIn, Operands: []any{Var{Name: ""}, []string{}}},
		},
	}
}

// IsEmpty reports whether the schema holds nothing but the reserved
// default cohort.
func (s *CohortSchema) IsEmpty() bool {
	return len(s.Enum) == 1 && s.Enum[0] == ReservedDefaultCohort
}

// DropDefault removes the reserved default cohort, if present.
func (s *CohortSchema) DropDefault() {
	if s.IsEmpty() {
		s.Enum = nil
		delete(s.Definitions, ReservedDefaultCohort)
	}
}
