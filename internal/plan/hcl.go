// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type (
	hclDocument struct {
		Invocations []hclInvocation `hcl:"invocation,block"`
	}

	hclInvocation struct {
		ID       string            `hcl:"id,label"`
		Step     string            `hcl:"step"`
		Anchor   string            `hcl:"anchor"`
		Scalars  map[string]string `hcl:"scalars,optional"`
		Env      map[string]string `hcl:"env,optional"`
		EnvFiles []string          `hcl:"env_files,optional"`
		Items    []hclItem         `hcl:"item,block"`
	}

	// hclItem is one `item "<list>" { ... }` block; items of the same list
	// keep their block order.
	hclItem struct {
		List     string            `hcl:"list,label"`
		Identity string            `hcl:"identity"`
		Metadata map[string]string `hcl:"metadata,optional"`
	}
)

func parseHCL(data []byte, file string) (*document, error) {
	f, diags := hclparse.NewParser().ParseHCL(data, file)
	if diags.HasErrors() {
		return nil, diags
	}
	var hd hclDocument
	if diags := gohcl.DecodeBody(f.Body, nil, &hd); diags.HasErrors() {
		return nil, diags
	}

	doc := &document{Invocations: make([]invocation, 0, len(hd.Invocations))}
	for _, hi := range hd.Invocations {
		inv := invocation{
			ID:       hi.ID,
			Step:     hi.Step,
			Anchor:   hi.Anchor,
			Scalars:  hi.Scalars,
			Env:      hi.Env,
			EnvFiles: hi.EnvFiles,
		}
		for _, it := range hi.Items {
			if inv.Items == nil {
				inv.Items = map[string][]planItem{}
			}
			inv.Items[it.List] = append(inv.Items[it.List], planItem{Identity: it.Identity, Metadata: it.Metadata})
		}
		doc.Invocations = append(doc.Invocations, inv)
	}
	return doc, nil
}
