package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

func TestInsertCheckpoint_RewritesPreviousUpperBound(t *testing.T) {
	// Seed scenario 2: c1 >= 1.2.0, then c2 >= 1.3.0; c1 becomes
	// AND(SemVerGe 1.2.0, SemVerLt 1.3.0) and enum order is [c1, c2].
	schema := domain.NewEmptyCohortSchema()

	require.NoError(t, insertCheckpoint(schema, "env", "c1", "1.2.0", ComparatorSemVerGe))
	require.NoError(t, insertCheckpoint(schema, "env", "c2", "1.3.0", ComparatorSemVerGe))

	assert.Equal(t, []domain.CohortName{"c1", "c2"}, schema.Enum)

	c1 := schema.Definitions["c1"]
	assert.Equal(t, domain.OpAnd, c1.Operator)
	require.Len(t, c1.Operands, 2)

	lower := c1.Operands[0].(domain.Clause)
	assert.Equal(t, domain.OpSemVerGe, lower.Operator)
	assert.Equal(t, "1.2.0", lower.Operands[1])

	upper := c1.Operands[1].(domain.Clause)
	assert.Equal(t, domain.OpSemVerLt, upper.Operator)
	assert.Equal(t, "1.3.0", upper.Operands[1])

	c2 := schema.Definitions["c2"]
	assert.Equal(t, domain.OpSemVerGe, c2.Operator)
}

func TestInsertCheckpoint_GtDualIsLe(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertCheckpoint(schema, "env", "c1", "1.0.0", ComparatorSemVerGt))
	require.NoError(t, insertCheckpoint(schema, "env", "c2", "2.0.0", ComparatorSemVerGt))

	c1 := schema.Definitions["c1"]
	upper := c1.Operands[1].(domain.Clause)
	assert.Equal(t, domain.OpSemVerLe, upper.Operator)
}

func TestInsertCheckpoint_RejectsDuplicateName(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertCheckpoint(schema, "env", "c1", "1.0.0", ComparatorSemVerGe))
	err := insertCheckpoint(schema, "env", "c1", "2.0.0", ComparatorSemVerGe)
	assert.Error(t, err)
}

func TestInsertCheckpoint_RemovesReservedDefaultOnFirstInsert(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.True(t, schema.IsEmpty())

	require.NoError(t, insertCheckpoint(schema, "env", "c1", "1.0.0", ComparatorSemVerGe))

	for _, name := range schema.Enum {
		assert.NotEqual(t, domain.ReservedDefaultCohort, name)
	}
}

func TestInsertGroup_AlwaysAtIndexZero(t *testing.T) {
	// Seed scenario 3: insert group g1, then checkpoint c3; enum order
	// must be [g1, c3] with c3 inserted after g1.
	schema := domain.NewEmptyCohortSchema()

	require.NoError(t, insertGroup(schema, "env", "g1", []string{"dev", "qa"}))
	require.NoError(t, insertCheckpoint(schema, "env", "c3", "1.0.0", ComparatorSemVerGe))

	assert.Equal(t, []domain.CohortName{"g1", "c3"}, schema.Enum)
}

func TestInsertGroup_InsertedBeforeExistingGroup(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertGroup(schema, "env", "g1", []string{"dev"}))
	require.NoError(t, insertGroup(schema, "env", "g2", []string{"qa"}))

	assert.Equal(t, []domain.CohortName{"g2", "g1"}, schema.Enum)
}

func TestInsertGroup_RejectsDuplicate(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertGroup(schema, "env", "g1", []string{"dev"}))
	err := insertGroup(schema, "env", "g1", []string{"qa"})
	assert.Error(t, err)
}

// TestGroupPriority_ContiguousFromZero is the §8 "Cohort group priority"
// property: group cohorts occupy enum indices [0, g-1] for any sequence
// of insert/reorder operations.
func TestGroupPriority_ContiguousFromZero(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertGroup(schema, "env", "g1", []string{"a"}))
	require.NoError(t, insertCheckpoint(schema, "env", "c1", "1.0.0", ComparatorSemVerGe))
	require.NoError(t, insertGroup(schema, "env", "g2", []string{"b"}))
	require.NoError(t, insertCheckpoint(schema, "env", "c2", "2.0.0", ComparatorSemVerGe))

	priorities := GetPriority(schema)
	assert.Len(t, priorities, 2)
	for _, idx := range priorities {
		assert.Less(t, idx, 2)
	}
}

func TestUpdatePriority_RejectsOutOfRange(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertGroup(schema, "env", "g1", []string{"a"}))
	require.NoError(t, insertGroup(schema, "env", "g2", []string{"b"}))

	err := updatePriority(schema, map[domain.CohortName]int{"g1": 5})
	assert.Error(t, err)
}

func TestUpdatePriority_ReordersWithinRange(t *testing.T) {
	schema := domain.NewEmptyCohortSchema()
	require.NoError(t, insertGroup(schema, "env", "g1", []string{"a"}))
	require.NoError(t, insertGroup(schema, "env", "g2", []string{"b"}))
	// enum is currently [g2, g1]

	require.NoError(t, updatePriority(schema, map[domain.CohortName]int{"g2": 1}))

	assert.Equal(t, domain.CohortName("g1"), schema.Enum[0])
	assert.Equal(t, domain.CohortName("g2"), schema.Enum[1])
}
