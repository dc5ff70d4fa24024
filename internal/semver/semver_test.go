package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{1, 2, 3}, v)
}

func TestParse_RejectsPartial(t *testing.T) {
	_, err := Parse("1.0")
	assert.Error(t, err)
}

func TestParse_RejectsPrerelease(t *testing.T) {
	_, err := Parse("1.0.0-beta")
	assert.Error(t, err)
}

func TestParse_RejectsLeadingZero(t *testing.T) {
	_, err := Parse("1.00.3")
	assert.Error(t, err)
}

func TestParse_RejectsNonNumeric(t *testing.T) {
	_, err := Parse("1.x.3")
	assert.Error(t, err)
}

func TestVersion_Monotonicity(t *testing.T) {
	// §8 SemVer monotonicity: strictly increasing sequence of patch bumps.
	v := Default
	for i := 0; i < 5; i++ {
		next := v.IncrementPatch()
		assert.True(t, v.Less(next))
		v = next
	}
}

func TestSort(t *testing.T) {
	versions := []Version{{1, 0, 3}, {1, 0, 1}, {2, 0, 0}, {1, 0, 2}}
	Sort(versions)
	assert.Equal(t, []Version{{1, 0, 1}, {1, 0, 2}, {1, 0, 3}, {2, 0, 0}}, versions)
}

func TestMax(t *testing.T) {
	versions := []Version{{1, 0, 3}, {2, 1, 0}, {1, 9, 9}}
	assert.Equal(t, Version{2, 1, 0}, Max(versions))
}

func TestString(t *testing.T) {
	assert.Equal(t, "1.2.3", Version{1, 2, 3}.String())
}
