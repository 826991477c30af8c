package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/criteria"
)

func TestParseListParams(t *testing.T) {
	cfg := config.APIConfig{DefaultPageSize: 100, MaxPageSize: 1000}

	p, err := ParseListParams(`{"name": "john"}`, `{"name": "asc"}`, "id, name,posts", "25", cfg)
	require.NoError(t, err)

	require.NotNil(t, p.Filter)
	assert.Equal(t, []string{"id", "name", "posts"}, p.Fields)
	require.Len(t, p.Order, 1)
	assert.Equal(t, criteria.OrderEntry{Column: "name", Direction: "asc"}, p.Order[0])
	require.NotNil(t, p.Limit)
	assert.Equal(t, 25, *p.Limit)
}

func TestParseListParams_Defaults(t *testing.T) {
	cfg := config.APIConfig{DefaultPageSize: 100, MaxPageSize: 1000}

	p, err := ParseListParams("", "", "", "", cfg)
	require.NoError(t, err)
	assert.Nil(t, p.Filter)
	assert.Nil(t, p.Fields)
	assert.Nil(t, p.Order)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 100, *p.Limit)
}

func TestParseListParams_LimitClamp(t *testing.T) {
	cfg := config.APIConfig{DefaultPageSize: 100, MaxPageSize: 1000}

	p, err := ParseListParams("", "", "", "5000", cfg)
	require.NoError(t, err)
	assert.Equal(t, 1000, *p.Limit)
}

func TestParseListParams_Invalid(t *testing.T) {
	cfg := config.APIConfig{DefaultPageSize: 100, MaxPageSize: 1000}

	_, err := ParseListParams(`{"name": `, "", "", "", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter expression")

	_, err = ParseListParams("", `["name"]`, "", "", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid order expression")

	_, err = ParseListParams("", "", "", "lots", cfg)
	require.Error(t, err)

	_, err = ParseListParams("", "", "", "-1", cfg)
	require.Error(t, err)
}

func TestParseListParams_RandomOrder(t *testing.T) {
	cfg := config.APIConfig{DefaultPageSize: 100, MaxPageSize: 1000}

	p, err := ParseListParams("", "random", "", "", cfg)
	require.NoError(t, err)
	require.Len(t, p.Order, 1)
	assert.Equal(t, criteria.OrderRandom, p.Order[0].Column)
}
