package jdbc_test

import (
	"testing"

	"github.com/fsdh/datahub-samples/internal/jdbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitioning_Predicates(t *testing.T) {
	tests := []struct {
		name string
		p    jdbc.Partitioning
		want []string
	}{
		{
			name: "three partitions",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 1, UpperBound: 10, Count: 3},
			want: []string{"id < 4 or id is null", "id >= 4 AND id < 7", "id >= 7"},
		},
		{
			name: "even strides",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 0, UpperBound: 100, Count: 4},
			want: []string{"id < 25 or id is null", "id >= 25 AND id < 50", "id >= 50 AND id < 75", "id >= 75"},
		},
		{
			name: "count reduced to span",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 1, UpperBound: 3, Count: 10},
			want: []string{"id < 2 or id is null", "id >= 2"},
		},
		{
			name: "single partition",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 1, UpperBound: 10, Count: 1},
			want: nil,
		},
		{
			name: "equal bounds",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 5, UpperBound: 5, Count: 4},
			want: nil,
		},
		{
			name: "span of one",
			p:    jdbc.Partitioning{Column: "id", LowerBound: 5, UpperBound: 6, Count: 4},
			want: nil,
		},
		{
			name: "qualified column",
			p:    jdbc.Partitioning{Column: "b.id", LowerBound: 0, UpperBound: 2, Count: 2},
			want: []string{"b.id < 1 or b.id is null", "b.id >= 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.Predicates()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartitioning_Invalid(t *testing.T) {
	_, err := jdbc.Partitioning{Column: "id", LowerBound: 10, UpperBound: 1, Count: 3}.Predicates()
	assert.Error(t, err)

	_, err = jdbc.Partitioning{Column: "id; DROP TABLE x", LowerBound: 1, UpperBound: 10, Count: 3}.Predicates()
	assert.Error(t, err)
}
