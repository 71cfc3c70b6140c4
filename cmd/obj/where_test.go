package obj

import (
	"testing"

	"github.com/ValentinKolb/objectis/lib/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr string
		want condition
	}{
		{"age<=24", condition{"age", "<=", []any{int64(24)}}},
		{"age >= 30", condition{"age", ">=", []any{int64(30)}}},
		{"score>1.5", condition{"score", ">", []any{1.5}}},
		{"name=Ada", condition{"name", "==", []any{"Ada"}}},
		{"name == '42'", condition{"name", "==", []any{"42"}}},
		{"active!=true", condition{"active", "!=", []any{true}}},
		{"email == null", condition{"email", "==", []any{nil}}},
		{"tags contains ops", condition{"tags", "contains", []any{"ops"}}},
		{"tags contains-any ops,dev", condition{"tags", "contains-any", []any{"ops", "dev"}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := parseCondition(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "age", "<=24", "age<=", "tags contains"} {
		_, err := parseCondition(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseOrder(t *testing.T) {
	field, dir, err := parseOrder("name:desc")
	require.NoError(t, err)
	assert.Equal(t, "name", field)
	assert.Equal(t, query.Descending, dir)

	field, dir, err = parseOrder("age")
	require.NoError(t, err)
	assert.Equal(t, "age", field)
	assert.Equal(t, query.Ascending, dir)

	_, _, err = parseOrder(":asc")
	assert.Error(t, err)
	_, _, err = parseOrder("age:up")
	assert.Error(t, err)
}
