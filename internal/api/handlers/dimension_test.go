package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/dimension"
	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeDimensionConfigService struct {
	dims map[string]domain.Dimension
}

func newFakeDimensionConfigService() *fakeDimensionConfigService {
	return &fakeDimensionConfigService{dims: make(map[string]domain.Dimension)}
}

func (f *fakeDimensionConfigService) ListDimensions(org, app string, page, count int) ([]domain.Dimension, error) {
	out := make([]domain.Dimension, 0, len(f.dims))
	for _, d := range f.dims {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDimensionConfigService) GetDimension(org, app, name string) (domain.Dimension, error) {
	return f.dims[name], nil
}

func (f *fakeDimensionConfigService) CreateDimension(org, app string, d domain.Dimension) error {
	f.dims[d.Name] = d
	return nil
}

func (f *fakeDimensionConfigService) UpdateDimension(org, app, name string, position *int, changeReason string) error {
	d := f.dims[name]
	if position != nil {
		d.Position = *position
	}
	f.dims[name] = d
	return nil
}

func (f *fakeDimensionConfigService) DeleteDimension(org, app, name string) error {
	delete(f.dims, name)
	return nil
}

func (f *fakeDimensionConfigService) WeightRecompute(org, app string) error { return nil }

type fakeDimensionReleaseLookup struct {
	referenced map[string]bool
}

func (f *fakeDimensionReleaseLookup) DimensionReferenced(org, app, name string) (bool, error) {
	return f.referenced[name], nil
}

func newTestDimensionHandler() (*DimensionHandler, *fakeDimensionConfigService) {
	cs := newFakeDimensionConfigService()
	registry := dimension.New(cs, &fakeDimensionReleaseLookup{}, nil)
	return NewDimensionHandler(registry), cs
}

func withOrgApp(r *http.Request, org, app string) *http.Request {
	return mux.SetURLVars(r, map[string]string{"org": org, "app": app})
}

func TestDimensionHandler_Create(t *testing.T) {
	h, cs := newTestDimensionHandler()

	body, _ := json.Marshal(createDimensionRequest{
		Name: "region",
		Type: domain.DimensionStandard,
	})
	req := httptest.NewRequest(http.MethodPost, "/organisations/acme/applications/app1/dimension", bytes.NewReader(body))
	req = withOrgApp(req, "acme", "app1")
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	_, ok := cs.dims["region"]
	assert.True(t, ok)
}

func TestDimensionHandler_Create_InvalidBody(t *testing.T) {
	h, _ := newTestDimensionHandler()

	req := httptest.NewRequest(http.MethodPost, "/organisations/acme/applications/app1/dimension", bytes.NewReader([]byte("not json")))
	req = withOrgApp(req, "acme", "app1")
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.NotEqual(t, http.StatusCreated, rec.Code)
}

func TestDimensionHandler_Delete(t *testing.T) {
	h, cs := newTestDimensionHandler()
	cs.dims["region"] = domain.Dimension{Name: "region", Type: domain.DimensionStandard}

	req := httptest.NewRequest(http.MethodDelete, "/organisations/acme/applications/app1/dimension/region", nil)
	req = mux.SetURLVars(req, map[string]string{"org": "acme", "app": "app1", "name": "region"})
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, stillExists := cs.dims["region"]
	assert.False(t, stillExists)
}

func TestDimensionHandler_List(t *testing.T) {
	h, cs := newTestDimensionHandler()
	cs.dims["region"] = domain.Dimension{Name: "region", Type: domain.DimensionStandard}

	req := httptest.NewRequest(http.MethodGet, "/organisations/acme/applications/app1/dimension", nil)
	req = withOrgApp(req, "acme", "app1")
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var dims []domain.Dimension
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dims))
	assert.Len(t, dims, 1)
}
