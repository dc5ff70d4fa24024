package configservice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

func TestEncodeDecodeCohortSchema_RoundTrips(t *testing.T) {
	schema := &domain.CohortSchema{
		Enum: []domain.CohortName{"eu", "us"},
		Definitions: map[domain.CohortName]domain.Clause{
			"eu": {
				Operator: domain.OpIn,
				Operands: []any{domain.Var{Name: "region"}, []string{"de", "fr"}},
			},
			"us": {
				Operator: domain.OpSemVerGe,
				Operands: []any{domain.Var{Name: "app_version"}, "2.0.0"},
			},
		},
	}

	encoded := encodeCohortSchema(schema)

	// round-trip through JSON, as the wire format would, to exercise the
	// same map[string]any shape decodeCohortSchema must handle.
	raw, err := json.Marshal(encoded)
	require.NoError(t, err)
	var reencoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &reencoded))

	decoded, err := decodeCohortSchema(reencoded)
	require.NoError(t, err)

	assert.ElementsMatch(t, schema.Enum, decoded.Enum)
	require.Contains(t, decoded.Definitions, domain.CohortName("eu"))
	assert.Equal(t, domain.OpIn, decoded.Definitions["eu"].Operator)
	require.Contains(t, decoded.Definitions, domain.CohortName("us"))
	assert.Equal(t, domain.OpSemVerGe, decoded.Definitions["us"].Operator)
}

func TestDecodeCohortSchema_NilRawReturnsEmptySchema(t *testing.T) {
	schema, err := decodeCohortSchema(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.NewEmptyCohortSchema(), schema)
}

func TestDecodeCohortSchema_UnknownOperatorFails(t *testing.T) {
	raw := map[string]any{
		"enum": []any{"eu"},
		"definitions": map[string]any{
			"eu": map[string]any{"operator": "NotAnOperator", "operands": []any{}},
		},
	}
	_, err := decodeCohortSchema(raw)
	assert.Error(t, err)
}

func TestDecodeOperand_Var(t *testing.T) {
	v := decodeOperand(map[string]any{"var": "region"})
	assert.Equal(t, domain.Var{Name: "region"}, v)
}
