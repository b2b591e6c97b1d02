package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiltersFromRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/customers", nil)

	f := FiltersFromRequest(r)
	require.Equal(t, DefaultPage, f.Page)
	require.Equal(t, DefaultLimit, f.Limit)
	require.Empty(t, f.Search)
	require.Zero(t, f.Offset())
}

func TestFiltersFromRequestCapsLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/customers?page=3&limit=500&search=acme&sort=created_at&dir=desc", nil)

	f := FiltersFromRequest(r)
	require.Equal(t, 3, f.Page)
	require.Equal(t, MaxLimit, f.Limit)
	require.Equal(t, "acme", f.Search)
	require.Equal(t, 200, f.Offset())
}

func TestFiltersFromRequestRejectsGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/customers?page=abc&limit=-5", nil)

	f := FiltersFromRequest(r)
	require.Equal(t, DefaultPage, f.Page)
	require.Equal(t, DefaultLimit, f.Limit)
}

func TestSortOrderWhitelist(t *testing.T) {
	require.Equal(t, "name ASC", SortOrder("", ""))
	require.Equal(t, "name DESC", SortOrder("name", "desc"))
	require.Equal(t, "created_at ASC", SortOrder("created_at", "asc"))
	require.Equal(t, "name ASC", SortOrder("id; DROP TABLE customers", ""))
}
