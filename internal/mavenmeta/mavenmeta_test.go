package mavenmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/semver"
)

// TestRoundTrip is the §8 "Maven round-trip" property: generate then
// parse must reproduce the same sorted version set.
func TestRoundTrip(t *testing.T) {
	versions := []semver.Version{{Major: 1, Minor: 0, Patch: 1}, {Major: 1, Minor: 0, Patch: 2}, {Major: 1, Minor: 1, Patch: 0}}

	xml := GenerateMetadata("acme", "app1", versions, time.Unix(1700000000, 0))
	parsed, err := ParseVersions(xml)
	require.NoError(t, err)

	assert.Equal(t, versions, parsed)
}

func TestGenerateMetadata_EmptyVersionsUsesDefault(t *testing.T) {
	xml := GenerateMetadata("acme", "app1", nil, time.Unix(1700000000, 0))
	assert.Contains(t, xml, "<latest>1.0.1</latest>")
}

func TestParseVersions_SkipsMalformedLinesOutsideTags(t *testing.T) {
	xml := "<metadata>\n  <versions>\n    <version>1.0.1</version>\n  </versions>\n</metadata>"
	versions, err := ParseVersions(xml)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, semver.Version{Major: 1, Minor: 0, Patch: 1}, versions[0])
}

func TestParseVersions_SkipsInvalidVersionEntry(t *testing.T) {
	xml := "<version>not-a-version</version>\n<version>1.0.2</version>"
	versions, err := ParseVersions(xml)
	require.NoError(t, err)
	assert.Equal(t, []semver.Version{{Major: 1, Minor: 0, Patch: 2}}, versions)
}

func TestGeneratePOM_ContainsVersionAndGroupID(t *testing.T) {
	pom := GeneratePOM("acme", "app1", semver.Version{Major: 2, Minor: 1, Patch: 0})
	assert.Contains(t, pom, "<groupId>acme</groupId>")
	assert.Contains(t, pom, "<version>2.1.0</version>")
}
