// SPDX-License-Identifier: MIT

package template

import (
	"strconv"
	"strings"
)

// comparison operators, longest first so ">=" is not read as ">".
var condOps = []string{">=", "<=", "!=", "==", ">", "<"}

// EvalCondition evaluates a simple predicate against the dictionary.
// Supported forms:
//
//	is_final              truthy variable ("true" or non-zero number)
//	streak_count>=3       numeric comparison
//	team_league==nfl      string equality / inequality
//
// Empty conditions are true. Malformed conditions and missing variables
// evaluate false rather than erroring.
func EvalCondition(condition string, vars Vars) bool {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return true
	}

	for _, op := range condOps {
		idx := strings.Index(cond, op)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(cond[:idx])
		right := strings.TrimSpace(cond[idx+len(op):])
		return compare(vars[left], op, right)
	}

	return truthy(vars[cond])
}

func compare(left, op, right string) bool {
	ln, lerr := strconv.ParseFloat(left, 64)
	rn, rerr := strconv.ParseFloat(right, 64)
	numeric := lerr == nil && rerr == nil

	switch op {
	case "==":
		if numeric {
			return ln == rn
		}
		return left == right
	case "!=":
		if numeric {
			return ln != rn
		}
		return left != right
	}

	if !numeric {
		return false
	}
	switch op {
	case ">=":
		return ln >= rn
	case "<=":
		return ln <= rn
	case ">":
		return ln > rn
	case "<":
		return ln < rn
	}
	return false
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0":
		return false
	}
	return true
}
