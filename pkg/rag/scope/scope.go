// Package scope selects which of a caller's documents take part in a query.
package scope

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scope is one of All, Latest, Current or IDs.
type Scope interface {
	isScope()
	String() string
}

// All selects every document owned by the caller.
type All struct{}

// Latest selects the most recently uploaded document.
type Latest struct{}

// Current selects a single document by id.
type Current struct {
	ID int64
}

// IDs selects an explicit set of documents.
type IDs struct {
	IDs []int64
}

func (All) isScope() {}
func (Latest) isScope() {}
func (Current) isScope() {}
func (IDs) isScope() {}

func (All) String() string { return "all" }
func (Latest) String() string { return "latest" }
func (s Current) String() string { return fmt.Sprintf("current(%d)", s.ID) }
func (s IDs) String() string { return fmt.Sprintf("ids(%v)", s.IDs) }

// Parse builds a Scope from its wire form. An empty kind means All. Ids that
// are not positive integers are dropped.
func Parse(kind string, id interface{}, ids []interface{}) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "all":
		return All{}, nil
	case "latest":
		return Latest{}, nil
	case "current":
		n, _ := toID(id)
		return Current{ID: n}, nil
	case "ids":
		clean := make([]int64, 0, len(ids))
		seen := make(map[int64]struct{}, len(ids))
		for _, raw := range ids {
			n, ok := toID(raw)
			if !ok {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			clean = append(clean, n)
		}
		return IDs{IDs: clean}, nil
	default:
		return nil, fmt.Errorf("unknown scope type %q", kind)
	}
}

// toID accepts the numeric shapes a JSON decoder or query string may produce.
func toID(v interface{}) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}
