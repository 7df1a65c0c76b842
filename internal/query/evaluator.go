package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// Params binds $name placeholders used in a query's WHERE clause.
type Params map[string]any

// Evaluate runs q against candidates (already filtered by label/type by the
// caller — see store.QueryNodes) and returns the matching, ordered bag.
// Ordering is insertion order unless an ORDER BY clause is supplied; ties
// are broken by id, lexicographically.
func Evaluate(q *Query, candidates []*types.Node, params Params) ([]*types.Node, error) {
	var out []*types.Node
	for _, n := range candidates {
		ok, err := matches(q.Where, n, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}

	if q.OrderBy != nil {
		field := q.OrderBy.Field
		desc := q.OrderBy.Desc
		sort.SliceStable(out, func(i, j int) bool {
			vi, oki := out[i].Attr(field)
			vj, okj := out[j].Attr(field)
			if lt := compareLess(vi, oki, vj, okj); lt != compareLess(vj, okj, vi, oki) {
				return lt != desc
			}
			return out[i].ID < out[j].ID
		})
	}

	return out, nil
}

func reverse(nodes []*types.Node) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

// compareLess provides a total order for ORDER BY: present values sort by
// string/number representation, absent values sort last, ties fall back to
// the caller's stable id ordering.
func compareLess(a any, aok bool, b any, bok bool) bool {
	if !aok && !bok {
		return false
	}
	if !aok {
		return false // a (absent) sorts after b
	}
	if !bok {
		return true // a sorts before b (absent)
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as < bs
	}
	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// matches evaluates a (possibly nil) WHERE predicate against a node.
func matches(n Node, node *types.Node, params Params) (bool, error) {
	if n == nil {
		return true, nil
	}
	switch v := n.(type) {
	case *AndNode:
		l, err := matches(v.Left, node, params)
		if err != nil || !l {
			return false, err
		}
		return matches(v.Right, node, params)
	case *OrNode:
		l, err := matches(v.Left, node, params)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return matches(v.Right, node, params)
	case *ComparisonNode:
		return evalComparison(v, node, params)
	default:
		return false, fmt.Errorf("query: unknown AST node %T", n)
	}
}

// evalComparison treats an unknown attribute in a predicate as absent
// (comparison yields false except for !=, which yields true), and applies
// no implicit coercion: mismatched types compare unequal.
func evalComparison(c *ComparisonNode, node *types.Node, params Params) (bool, error) {
	rhs, err := resolveValue(c.Value, params)
	if err != nil {
		return false, err
	}

	attr, present := node.Attr(c.Field)

	switch c.Op {
	case OpEquals:
		if !present {
			return false, nil
		}
		return types.StructuralEqual(attr, rhs), nil
	case OpNotEquals:
		if !present {
			return true, nil
		}
		return !types.StructuralEqual(attr, rhs), nil
	case OpContains:
		if !present {
			return false, nil
		}
		return evalContains(attr, rhs), nil
	case OpIn:
		if !present {
			return false, nil
		}
		list, ok := rhs.([]any)
		if !ok {
			return false, fmt.Errorf("query: IN requires a list value")
		}
		for _, item := range list {
			if types.StructuralEqual(attr, item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("query: unsupported operator %s", c.Op)
	}
}

// evalContains supports both substring containment on strings and element
// containment on list-valued attrs.
func evalContains(attr, rhs any) bool {
	switch av := attr.(type) {
	case string:
		rs, ok := rhs.(string)
		return ok && strings.Contains(av, rs)
	case []any:
		for _, item := range av {
			if types.StructuralEqual(item, rhs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func resolveValue(v Value, params Params) (any, error) {
	if v.Param != "" {
		val, ok := params[v.Param]
		if !ok {
			return nil, fmt.Errorf("query: unbound parameter $%s", v.Param)
		}
		return val, nil
	}
	return v.Literal, nil
}
