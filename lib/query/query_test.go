package query

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Tags     []string `json:"tags"`
	Score    *float64 `json:"score"`
	Verified bool     `json:"verified"`
}

func describePerson(t *testing.T) *schema.Descriptor {
	t.Helper()
	d, err := schema.Describe[person]()
	require.NoError(t, err)
	return d
}

// people returns ten records with ages 20..29 and names N0..N9
func people() []*person {
	out := make([]*person, 10)
	for i := range out {
		score := float64(i) / 2
		out[i] = &person{
			ID:       fmt.Sprintf("p%d", i),
			Name:     fmt.Sprintf("N%d", i),
			Age:      20 + i,
			Score:    &score,
			Verified: i%2 == 0,
		}
	}
	out[0].Tags = []string{"admin", "ops"}
	out[1].Tags = []string{"ops"}
	out[2].Tags = []string{"dev"}
	out[3].Score = nil
	return out
}

func ages(items []*person) []int {
	out := make([]int, len(items))
	for i, p := range items {
		out[i] = p.Age
	}
	return out
}

func names(items []*person) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Name
	}
	return out
}

func TestComparisonPredicates(t *testing.T) {
	d := describePerson(t)

	tests := []struct {
		name string
		run  func(*Filterable[person]) *Filterable[person]
		want []int
	}{
		{"lte", func(f *Filterable[person]) *Filterable[person] { return f.WhereLessThanOrEqualTo("age", 24) }, []int{20, 21, 22, 23, 24}},
		{"lt", func(f *Filterable[person]) *Filterable[person] { return f.WhereLessThan("age", 22) }, []int{20, 21}},
		{"gt", func(f *Filterable[person]) *Filterable[person] { return f.WhereGreaterThan("age", 27) }, []int{28, 29}},
		{"gte", func(f *Filterable[person]) *Filterable[person] { return f.WhereGreaterThanOrEqualTo("age", 28) }, []int{28, 29}},
		{"float bound", func(f *Filterable[person]) *Filterable[person] { return f.WhereLessThan("age", 21.5) }, []int{20, 21}},
		{"eq", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("age", 25) }, []int{25}},
		{"eq float", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("age", 25.0) }, []int{25}},
		{"go name", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("Age", int8(25)) }, []int{25}},
		{"neq", func(f *Filterable[person]) *Filterable[person] { return f.WhereNotEqualTo("age", 20).WhereLessThan("age", 23) }, []int{21, 22}},
		{"strings", func(f *Filterable[person]) *Filterable[person] { return f.WhereGreaterThan("name", "N7") }, []int{28, 29}},
		{"bools", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("verified", true).WhereLessThan("age", 25) }, []int{20, 22, 24}},
		{"no match", func(f *Filterable[person]) *Filterable[person] { return f.WhereGreaterThan("age", 100) }, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.run(New(d, people())).Fetch()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ages(res.Items))
		})
	}
}

func TestOrderByWithWindow(t *testing.T) {
	d := describePerson(t)

	res, err := New(d, people()).OrderBy("name", Descending).Offset(3).Limit(2).Fetch()
	require.NoError(t, err)

	// descending: N9, N8, N7, N6, N5, ... skip three, take two
	assert.Equal(t, []string{"N6", "N5"}, names(res.Items))
	assert.Equal(t, "p5", res.LastID)
	assert.True(t, res.HasCursor())
	assert.Equal(t, []string{"p6", "p5"}, res.IDs(d.ID))
}

func TestOrderByAscending(t *testing.T) {
	d := describePerson(t)
	items := people()
	// shuffle deterministically
	items[0], items[9], items[4], items[5] = items[9], items[0], items[5], items[4]

	res, err := New(d, items).OrderBy("age", Ascending).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22, 23, 24, 25, 26, 27, 28, 29}, ages(res.Items))
}

func TestOrderByIsStable(t *testing.T) {
	d := describePerson(t)
	items := people()

	// verified splits the records into two groups of equal keys
	for _, dir := range []Direction{Ascending, Descending} {
		t.Run(dir.String(), func(t *testing.T) {
			first, err := New(d, items).OrderBy("verified", dir).Fetch()
			require.NoError(t, err)
			second, err := New(d, first.Items).OrderBy("verified", dir).Fetch()
			require.NoError(t, err)
			assert.Equal(t, names(first.Items), names(second.Items), "sorting twice must not change the order")

			want := []string{"N1", "N3", "N5", "N7", "N9", "N0", "N2", "N4", "N6", "N8"}
			if dir == Descending {
				want = []string{"N0", "N2", "N4", "N6", "N8", "N1", "N3", "N5", "N7", "N9"}
			}
			assert.Equal(t, want, names(first.Items))
		})
	}
}

func TestOrderByNulls(t *testing.T) {
	d := describePerson(t)

	asc, err := New(d, people()).OrderBy("score", Ascending).Limit(2).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"N3", "N0"}, names(asc.Items), "nulls first when ascending")

	desc, err := New(d, people()).OrderBy("score", Descending).Fetch()
	require.NoError(t, err)
	assert.Equal(t, "N3", desc.Items[len(desc.Items)-1].Name, "nulls last when descending")
}

func TestNullPredicates(t *testing.T) {
	d := describePerson(t)

	res, err := New(d, people()).WhereEqualTo("score", nil).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"N3"}, names(res.Items))

	res, err = New(d, people()).WhereLessThan("score", 100).Fetch()
	require.NoError(t, err)
	assert.Len(t, res.Items, 9, "null never satisfies an ordering predicate")

	res, err = New(d, people()).WhereNotEqualTo("score", nil).Fetch()
	require.NoError(t, err)
	assert.Len(t, res.Items, 9)
}

func TestArrayPredicates(t *testing.T) {
	d := describePerson(t)

	res, err := New(d, people()).WhereArrayContains("tags", "ops").Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"N0", "N1"}, names(res.Items))

	res, err = New(d, people()).WhereArrayContainsAny("tags", "dev", "admin").Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"N0", "N2"}, names(res.Items))

	// a single slice argument is expanded
	res, err = New(d, people()).WhereArrayContainsAny("tags", []string{"dev", "nobody"}).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"N2"}, names(res.Items))

	res, err = New(d, people()).WhereArrayContainsAny("tags").Fetch()
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	_, err = New(d, people()).WhereArrayContains("age", 20).Fetch()
	assert.ErrorIs(t, err, errs.ErrInvalidField)
}

func TestWindowNoOps(t *testing.T) {
	d := describePerson(t)

	tests := []struct {
		name   string
		limit  int
		offset int
		want   int
	}{
		{"zero limit", 0, 0, 10},
		{"negative limit", -1, 0, 10},
		{"limit larger than set", 11, 0, 10},
		{"limit equal to set", 10, 0, 10},
		{"negative offset", 0, -2, 10},
		{"offset equal to set", 0, 10, 10},
		{"offset beyond set", 0, 42, 10},
		{"offset last", 0, 9, 1},
		{"both", 3, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(d, people()).Offset(tt.offset).Limit(tt.limit).Fetch()
			require.NoError(t, err)
			assert.Len(t, res.Items, tt.want)
		})
	}
}

func TestCallOrderMatters(t *testing.T) {
	d := describePerson(t)

	limitFirst, err := New(d, people()).Limit(3).OrderBy("age", Descending).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []int{22, 21, 20}, ages(limitFirst.Items))

	orderFirst, err := New(d, people()).OrderBy("age", Descending).Limit(3).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []int{29, 28, 27}, ages(orderFirst.Items))
}

func TestPredicatesCommute(t *testing.T) {
	d := describePerson(t)

	a, err := New(d, people()).WhereGreaterThan("age", 21).WhereEqualTo("verified", true).Fetch()
	require.NoError(t, err)
	b, err := New(d, people()).WhereEqualTo("verified", true).WhereGreaterThan("age", 21).Fetch()
	require.NoError(t, err)

	assert.Equal(t, names(a.Items), names(b.Items))
	assert.Equal(t, []int{22, 24, 26, 28}, ages(a.Items))
}

func TestErrorsAreSticky(t *testing.T) {
	d := describePerson(t)

	tests := []struct {
		name string
		run  func(*Filterable[person]) *Filterable[person]
	}{
		{"unknown field", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("nope", 1) }},
		{"unknown order field", func(f *Filterable[person]) *Filterable[person] { return f.OrderBy("nope", Ascending) }},
		{"order by array", func(f *Filterable[person]) *Filterable[person] { return f.OrderBy("tags", Ascending) }},
		{"string vs int", func(f *Filterable[person]) *Filterable[person] { return f.WhereGreaterThan("age", "twenty") }},
		{"nil bound", func(f *Filterable[person]) *Filterable[person] { return f.WhereLessThan("age", nil) }},
		{"unsupported value", func(f *Filterable[person]) *Filterable[person] { return f.WhereEqualTo("age", map[string]int{}) }},
		{"array field compared", func(f *Filterable[person]) *Filterable[person] { return f.WhereLessThan("tags", 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.run(New(d, people()))
			require.ErrorIs(t, f.Err(), errs.ErrInvalidField)

			// later operations are skipped
			f = f.WhereEqualTo("age", 20).OrderBy("age", Ascending).Limit(1).Offset(0)
			res, err := f.Fetch()
			assert.ErrorIs(t, err, errs.ErrInvalidField)
			assert.Nil(t, res.Items)
			assert.False(t, res.HasCursor())
		})
	}
}

func TestFailed(t *testing.T) {
	cause := errs.NotRegistered("query.person")
	_, err := Failed[person](cause).WhereEqualTo("age", 1).Fetch()
	assert.ErrorIs(t, err, errs.ErrNotRegistered)
}

func TestFetchIsRepeatableAndIsolated(t *testing.T) {
	d := describePerson(t)
	items := people()

	f := New(d, items).WhereLessThan("age", 23)
	first, err := f.Fetch()
	require.NoError(t, err)
	first.Items[0] = nil

	second, err := f.Fetch()
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22}, ages(second.Items))
	assert.Equal(t, 3, f.Len())

	// the input slice is not modified
	assert.Equal(t, 10, len(items))
	assert.Equal(t, "N0", items[0].Name)
}

func TestEmptyAndNilRecords(t *testing.T) {
	d := describePerson(t)

	res, err := New[person](d, nil).OrderBy("age", Ascending).Limit(3).Fetch()
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.LastID)

	res, err = New(d, []*person{nil, {ID: "x", Age: 1}, nil}).Fetch()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
	assert.Equal(t, "x", res.LastID)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": Ascending, "asc": Ascending, "ASC": Ascending, "Descending": Descending, "desc": Descending} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}

func BenchmarkFilterOrderLimit(b *testing.B) {
	d, err := schema.Describe[person]()
	require.NoError(b, err)

	items := make([]*person, 10_000)
	for i := range items {
		items[i] = &person{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("N%05d", (i*7919)%10_000), Age: i % 90}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := New(d, items).WhereGreaterThan("age", 30).OrderBy("name", Descending).Limit(20).Fetch()
		if err != nil {
			b.Fatal(err)
		}
	}
}

type counter struct {
	ID    string `json:"id"`
	Total uint64 `json:"total"`
}

// Unsigned values beyond int64 behave like null instead of wrapping negative.
func TestUnsignedOverflowIsNull(t *testing.T) {
	d, err := schema.Describe[counter]()
	require.NoError(t, err)

	items := []*counter{{ID: "small", Total: 7}, {ID: "huge", Total: 1 << 63}}

	res, err := New(d, items).WhereLessThan("total", 10).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"small"}, res.IDs(d.ID))

	res, err = New(d, items).OrderBy("total", Descending).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"small", "huge"}, res.IDs(d.ID))

	res, err = New(d, items).WhereEqualTo("total", nil).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"huge"}, res.IDs(d.ID))

	_, err = New(d, items).WhereGreaterThan("total", uint64(1<<63)).Fetch()
	assert.ErrorIs(t, err, errs.ErrInvalidField)
}
