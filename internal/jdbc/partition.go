package jdbc

import (
	"fmt"
	"regexp"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	subqueryPattern   = regexp.MustCompile(`(?is)^\(.+\)\s+(as\s+)?[A-Za-z_][A-Za-z0-9_]*$`)
)

// Partitioning splits a read into strides over a numeric column
type Partitioning struct {
	Column     string
	LowerBound int64
	UpperBound int64
	Count      int
}

// Predicates returns one WHERE clause per partition. The bounds only decide
// the stride: the first partition also takes values below the lower bound and
// nulls, the last takes everything from its start up.
// An empty result means a single unfiltered read.
func (p Partitioning) Predicates() ([]string, error) {
	if !identifierPattern.MatchString(p.Column) {
		return nil, fmt.Errorf("invalid partition column %q", p.Column)
	}
	if p.LowerBound > p.UpperBound {
		return nil, fmt.Errorf("lower bound %d of partition column %s is larger than upper bound %d",
			p.LowerBound, p.Column, p.UpperBound)
	}

	count := int64(p.Count)
	if count <= 1 || p.LowerBound == p.UpperBound {
		return nil, nil
	}
	if span := p.UpperBound - p.LowerBound; span < count {
		count = span
	}
	if count <= 1 {
		return nil, nil
	}

	stride := p.UpperBound/count - p.LowerBound/count
	predicates := make([]string, 0, count)
	current := p.LowerBound
	for i := int64(0); i < count; i++ {
		lower := ""
		if i != 0 {
			lower = fmt.Sprintf("%s >= %d", p.Column, current)
		}
		current += stride
		upper := ""
		if i != count-1 {
			upper = fmt.Sprintf("%s < %d", p.Column, current)
		}

		switch {
		case upper == "":
			predicates = append(predicates, lower)
		case lower == "":
			predicates = append(predicates, fmt.Sprintf("%s or %s is null", upper, p.Column))
		default:
			predicates = append(predicates, fmt.Sprintf("%s AND %s", lower, upper))
		}
	}
	return predicates, nil
}

func validTable(table string) bool {
	return identifierPattern.MatchString(table) || subqueryPattern.MatchString(table)
}
