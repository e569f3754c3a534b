// Copyright 2025 vectir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vir

import (
	"fmt"
	"sort"
	"strings"
)

// printer assigns stable names to values as they are encountered.
type printer struct {
	sb    strings.Builder
	names map[*Value]string
	next  int
}

func (p *printer) name(v *Value) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("%%%d", p.next)
	p.next++
	p.names[v] = n
	return n
}

// String renders the function in a compact SSA-style textual form.
func (f *Func) String() string {
	p := &printer{names: make(map[*Value]string)}
	fmt.Fprintf(&p.sb, "func %s(", f.Name)
	for i, arg := range f.Args {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		n := fmt.Sprintf("%%arg%d", i)
		p.names[arg] = n
		fmt.Fprintf(&p.sb, "%s: %s", n, arg.Type())
	}
	p.sb.WriteString(") {\n")
	p.printRegion(&f.Body, "  ")
	p.sb.WriteString("}\n")
	return p.sb.String()
}

func (p *printer) printRegion(r *Region, indent string) {
	for _, op := range r.Ops {
		p.printOp(op, indent)
	}
}

func (p *printer) printOp(op *Operation, indent string) {
	p.sb.WriteString(indent)
	if len(op.Results) > 0 {
		res := make([]string, len(op.Results))
		for i, v := range op.Results {
			res[i] = p.name(v)
		}
		p.sb.WriteString(strings.Join(res, ", "))
		p.sb.WriteString(" = ")
	}
	p.sb.WriteString(op.Kind.String())
	if len(op.Operands) > 0 {
		args := make([]string, len(op.Operands))
		for i, v := range op.Operands {
			args[i] = p.name(v)
		}
		p.sb.WriteString(" ")
		p.sb.WriteString(strings.Join(args, ", "))
	}
	if s := formatAttrs(op.Attrs); s != "" {
		p.sb.WriteString(" {")
		p.sb.WriteString(s)
		p.sb.WriteString("}")
	}
	if len(op.Results) > 0 {
		types := make([]string, len(op.Results))
		for i, v := range op.Results {
			types[i] = v.Type().String()
		}
		p.sb.WriteString(" : ")
		p.sb.WriteString(strings.Join(types, ", "))
	}
	p.sb.WriteString("\n")
	if op.Kind == OpIf {
		p.sb.WriteString(indent)
		p.sb.WriteString("then {\n")
		p.printRegion(op.Then, indent+"  ")
		p.sb.WriteString(indent)
		p.sb.WriteString("} else {\n")
		p.printRegion(op.Else, indent+"  ")
		p.sb.WriteString(indent)
		p.sb.WriteString("}\n")
	}
}

func formatAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = %v", k, attrs[k]))
	}
	return strings.Join(parts, ", ")
}

// String renders a single operation, mainly for debug output and error
// messages.
func (op *Operation) String() string {
	p := &printer{names: make(map[*Value]string)}
	p.printOp(op, "")
	return strings.TrimSuffix(p.sb.String(), "\n")
}
