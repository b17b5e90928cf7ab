// Package differ provides semantic comparison of rendered templates. Two
// synthesis passes over unchanged inputs must produce an empty diff.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"slices"
	"sort"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons.
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    wetwire.TemplateDiff
	Summary wetwire.DiffSummary
}

// Compare compares two templates and returns their differences.
func Compare(template1, template2 *wetwire.Template, opts Options) (*Result, error) {
	if template1 == nil || template2 == nil {
		return nil, fmt.Errorf("differ: nil template")
	}
	result := &Result{}

	res1 := template1.Resources
	res2 := template2.Resources

	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, wetwire.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, wetwire.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def1 := range res1 {
		if def2, exists := res2[name]; exists {
			if changes := compareResources(def1, def2, opts); len(changes) > 0 {
				result.Diff.Modified = append(result.Diff.Modified, wetwire.DiffEntry{
					Resource: name,
					Type:     def1.Type,
					Changes:  changes,
				})
			}
		}
	}
	result.Diff.Outputs = compareOutputs(template1.Outputs, template2.Outputs, opts)

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = wetwire.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
		Outputs:  len(result.Diff.Outputs),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified + result.Summary.Outputs

	return result, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}
	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}
	return Compare(t1, t2, opts)
}

// LoadTemplate loads a JSON or YAML template from a file.
func LoadTemplate(path string) (*wetwire.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return template.Parse(data)
}

func compareResources(def1, def2 wetwire.ResourceDef, opts Options) []string {
	var changes []string
	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}
	changes = append(changes, compareProperties("", def1.Properties, def2.Properties, opts)...)
	if !slices.Equal(def1.DependsOn, def2.DependsOn) {
		changes = append(changes, "DependsOn changed")
	}
	sort.Strings(changes)
	return changes
}

// compareProperties recursively compares property maps and reports the
// dotted path of every difference.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string
	for key, val2 := range props2 {
		path := joinPath(prefix, key)
		val1, exists := props1[key]
		if !exists {
			changes = append(changes, path+" added")
			continue
		}
		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 && !isIntrinsic(m1) && !isIntrinsic(m2) {
			changes = append(changes, compareProperties(path, m1, m2, opts)...)
			continue
		}
		if !deepEqual(val1, val2, opts) {
			changes = append(changes, path+" modified")
		}
	}
	for key := range props1 {
		if _, exists := props2[key]; !exists {
			changes = append(changes, joinPath(prefix, key)+" removed")
		}
	}
	sort.Strings(changes)
	return changes
}

// compareOutputs reports added, removed and modified outputs.
func compareOutputs(out1, out2 map[string]wetwire.Output, opts Options) []string {
	var changes []string
	for name, o2 := range out2 {
		o1, exists := out1[name]
		switch {
		case !exists:
			changes = append(changes, name+" added")
		case !deepEqual(normalize(o1.Value), normalize(o2.Value), opts) || !reflect.DeepEqual(normalize(o1.Export), normalize(o2.Export)):
			changes = append(changes, name+" modified")
		}
	}
	for name := range out1 {
		if _, exists := out2[name]; !exists {
			changes = append(changes, name+" removed")
		}
	}
	sort.Strings(changes)
	return changes
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// isIntrinsic reports whether m is a single intrinsic function call, which
// is compared as a whole.
func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || len(k) > 4 && k[:4] == "Fn::"
	}
	return false
}

// deepEqual compares two values deeply, optionally ignoring slice order.
func deepEqual(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a = sortSlices(a)
		b = sortSlices(b)
	}
	return reflect.DeepEqual(a, b)
}

// sortSlices returns v with every slice sorted by the JSON encoding of its
// elements.
func sortSlices(v any) any {
	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		for i, elem := range val {
			result[i] = sortSlices(elem)
		}
		sort.SliceStable(result, func(i, j int) bool {
			return encode(result[i]) < encode(result[j])
		})
		return result
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, elem := range val {
			result[k] = sortSlices(elem)
		}
		return result
	default:
		return v
	}
}

// normalize converts typed values into the generic form decoded templates
// carry, so in-memory and loaded templates compare equal.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func encode(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []wetwire.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
