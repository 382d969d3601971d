// SPDX-License-Identifier: MIT

package template

import (
	"regexp"
	"sort"

	"github.com/teamarr/teamarr/internal/store"
)

var varRefRe = regexp.MustCompile(`\{([a-z_][a-z0-9_.]*)\}`)

// Render substitutes {name} references from the dictionary. Unknown names
// render as empty strings; rendering never fails.
func Render(pattern string, vars Vars) string {
	return varRefRe.ReplaceAllStringFunc(pattern, func(ref string) string {
		name := ref[1 : len(ref)-1]
		return vars[name]
	})
}

// ResolveDescription picks the description body for the current variables.
// Options are evaluated in ascending priority; the first conditional
// (priority 1-99) whose condition holds wins. Priority-100 options are
// unconditional fallbacks and the last one listed wins among them.
func ResolveDescription(options []store.DescriptionOption, vars Vars) string {
	sorted := make([]store.DescriptionOption, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	fallback := ""
	for _, opt := range sorted {
		if opt.Priority >= 100 {
			fallback = opt.Body
			continue
		}
		if EvalCondition(opt.Condition, vars) {
			return Render(opt.Body, vars)
		}
	}
	return Render(fallback, vars)
}
