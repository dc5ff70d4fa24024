package configservice

import (
	"context"
	"fmt"
	"net/http"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// CohortSchemaStore adapts Client to cohort.SchemaStore: a cohort
// dimension's schema lives in the same Dimension.Schema blob the config
// service already persists (§4.2), so no separate storage is needed —
// only a conversion between the engine's typed CohortSchema and the
// generic JSON-logic map the wire format carries.
type CohortSchemaStore struct {
	client *Client
	cdn    CDNInvalidator
}

// CDNInvalidator purges the serve cache on cohort mutation (§4.8).
type CDNInvalidator interface {
	Invalidate(org, app string)
}

// NewCohortSchemaStore builds a CohortSchemaStore.
func NewCohortSchemaStore(client *Client, cdn CDNInvalidator) *CohortSchemaStore {
	return &CohortSchemaStore{client: client, cdn: cdn}
}

// Load fetches the dimension and decodes its schema into a CohortSchema.
func (s *CohortSchemaStore) Load(org, app, dimensionName string) (*domain.CohortSchema, string, error) {
	d, err := s.client.GetDimension(org, app, dimensionName)
	if err != nil {
		return nil, "", err
	}
	if !d.IsCohort() {
		return nil, "", fmt.Errorf("%w: dimension %q is not a cohort dimension", domainerrors.ErrBadRequest, dimensionName)
	}

	schema, err := decodeCohortSchema(d.Schema)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	return schema, d.DependsOn, nil
}

// Save encodes the schema back into the dimension's generic JSON-logic
// shape and persists it via the config service's schema-update endpoint.
func (s *CohortSchemaStore) Save(org, app, dimensionName string, schema *domain.CohortSchema, changeReason string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension/%s/schema", org, app, dimensionName)
	body := map[string]any{
		"schema":        encodeCohortSchema(schema),
		"change_reason": changeReason,
	}
	return s.client.do(context.Background(), http.MethodPut, path, body, nil)
}

// InvalidateCDN implements cohort.SchemaStore's CDN hook.
func (s *CohortSchemaStore) InvalidateCDN(org, app string) {
	if s.cdn != nil {
		s.cdn.Invalidate(org, app)
	}
}

// encodeCohortSchema renders a CohortSchema as the generic
// {enum: [...], definitions: {name: {operator, operands}}} shape the
// config service stores verbatim in Dimension.Schema.
func encodeCohortSchema(schema *domain.CohortSchema) map[string]any {
	enum := make([]string, len(schema.Enum))
	for i, name := range schema.Enum {
		enum[i] = string(name)
	}

	definitions := make(map[string]any, len(schema.Definitions))
	for name, clause := range schema.Definitions {
		definitions[string(name)] = encodeClause(clause)
	}

	return map[string]any{"enum": enum, "definitions": definitions}
}

func encodeClause(c domain.Clause) map[string]any {
	operands := make([]any, len(c.Operands))
	for i, op := range c.Operands {
		if v, ok := op.(domain.Var); ok {
			operands[i] = map[string]any{"var": v.Name}
			continue
		}
		if nested, ok := op.(domain.Clause); ok {
			operands[i] = encodeClause(nested)
			continue
		}
		operands[i] = op
	}
	return map[string]any{"operator": string(c.Operator), "operands": operands}
}

func decodeCohortSchema(raw map[string]any) (*domain.CohortSchema, error) {
	if raw == nil {
		return domain.NewEmptyCohortSchema(), nil
	}

	rawEnum, _ := raw["enum"].([]any)
	enum := make([]domain.CohortName, 0, len(rawEnum))
	for _, e := range rawEnum {
		name, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("cohort schema: non-string enum entry %v", e)
		}
		enum = append(enum, domain.CohortName(name))
	}

	rawDefs, _ := raw["definitions"].(map[string]any)
	definitions := make(map[domain.CohortName]domain.Clause, len(rawDefs))
	for name, rawClause := range rawDefs {
		clauseMap, ok := rawClause.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cohort schema: malformed clause for %q", name)
		}
		clause, err := decodeClause(clauseMap)
		if err != nil {
			return nil, err
		}
		definitions[domain.CohortName(name)] = clause
	}

	if len(enum) == 0 {
		return domain.NewEmptyCohortSchema(), nil
	}
	return &domain.CohortSchema{Enum: enum, Definitions: definitions}, nil
}

func decodeClause(raw map[string]any) (domain.Clause, error) {
	opStr, _ := raw["operator"].(string)
	op := domain.Operator(opStr)
	if !domain.ValidOperators[op] {
		return domain.Clause{}, fmt.Errorf("%w: unknown cohort operator %q", domainerrors.ErrBadRequest, opStr)
	}

	rawOperands, _ := raw["operands"].([]any)
	operands := make([]any, 0, len(rawOperands))
	for _, rawOperand := range rawOperands {
		operands = append(operands, decodeOperand(rawOperand))
	}
	return domain.Clause{Operator: op, Operands: operands}, nil
}

func decodeOperand(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if name, ok := m["var"].(string); ok {
		return domain.Var{Name: name}
	}
	if _, ok := m["operator"]; ok {
		if clause, err := decodeClause(m); err == nil {
			return clause
		}
	}
	return raw
}
