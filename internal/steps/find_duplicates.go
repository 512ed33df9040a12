// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"context"
	"strings"

	"github.com/parastep/parastep/internal/step"
)

// FindDuplicates reports item keys that occur more than once, in order of
// first appearance. The key is the identity, or the MetadataKey value when
// that input is set.
type FindDuplicates struct {
	step.Base
}

// Execute implements step.Runner.
func (s *FindDuplicates) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	metaKey, _ := in.Scalar("MetadataKey")
	metaKey = strings.TrimSpace(metaKey)
	strict, err := in.Bool("FailOnDuplicates")
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	first := map[string]int{}
	var order []string
	for i, it := range in.Items("Items") {
		key := it.Identity
		if metaKey != "" {
			key = it.Get(metaKey)
		}
		if _, seen := counts[key]; !seen {
			first[key] = i
			order = append(order, key)
		}
		counts[key]++
	}

	var dups []step.Item
	for _, key := range order {
		n := counts[key]
		if n < 2 {
			continue
		}
		if strict {
			diags.Errorf("duplicate item %q appears %d times", key, n)
		} else {
			diags.Warnf("duplicate item %q appears %d times", key, n)
		}
		dups = append(dups, step.NewItem(key, "Count", itoa(n), "FirstIndex", itoa(first[key])))
	}
	return step.Outputs{"Duplicates": dups}, nil
}
