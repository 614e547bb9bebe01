package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	f := mustLoad(t, "g,v,s\na,1,x\nb,2,y\na,3,x\nb,,z\n")

	cases := []struct {
		agg  Agg
		col  string
		want float64
	}{
		{AggMean, "v", 2},
		{AggMedian, "v", 2},
		{AggSum, "v", 6},
		{AggMin, "v", 1},
		{AggMax, "v", 3},
		{AggCount, "v", 3},
		{AggNUnique, "s", 3},
		{AggCount, "s", 4},
	}
	for _, tc := range cases {
		got, err := f.Reduce(tc.col, tc.agg)
		require.NoError(t, err, tc.agg)
		assert.InDelta(t, tc.want, got, 1e-9, "%s(%s)", tc.agg, tc.col)
	}

	_, err := f.Reduce("s", AggMean)
	assert.ErrorContains(t, err, "numeric")
}

func TestGroupBy(t *testing.T) {
	f := mustLoad(t, "g,v\nb,2\na,1\na,3\n,9\nb,4\n")
	groups, err := f.GroupBy("g", "v", AggMean)
	require.NoError(t, err)
	assert.Equal(t, []Group{{Key: "a", Value: 2}, {Key: "b", Value: 3}}, groups)

	_, err = f.GroupBy("missing", "v", AggMean)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestValueCountsAndUnique(t *testing.T) {
	f := mustLoad(t, "c,k\nx,1\ny,2\ny,3\nz,4\n,5\n")

	vc, err := f.ValueCounts("c")
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{{Value: "y", Count: 2}, {Value: "x", Count: 1}, {Value: "z", Count: 1}}, vc)

	u, err := f.Unique("c")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y", "z"}, u)
}

func TestParseAgg(t *testing.T) {
	a, err := ParseAgg(" Mean ")
	require.NoError(t, err)
	assert.Equal(t, AggMean, a)

	_, err = ParseAgg("mode")
	assert.Error(t, err)
}
