// varyings.go implements the varyings resolution pass. After template
// rendering, the composer scans the WGSL text for `varyings.<name> = ...`
// assignments in the vertex entry point and `varyings.<name>` reads
// elsewhere, checks that every read name is assigned with a consistent
// explicit type, comments out assignments nothing reads (preserving line
// numbers), and synthesizes the Varyings struct in front of the first
// function that mentions it.
package shader

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

var (
	// varyingSetterRe matches an assignment at the start of a line and
	// captures the varying name plus an optional attribute access.
	varyingSetterRe = regexp.MustCompile(`^\s*?varyings\.(\w+)(\.\w+)?\s*?=`)

	// varyingGetterRe matches a read; the scanner prepends one space per
	// line so a leading mention still has a preceding delimiter.
	varyingGetterRe = regexp.MustCompile(`[\s,\(\[]varyings\.(\w+)`)
)

// builtinVaryings are emitted as @builtin struct fields instead of numbered
// slots, and count as used even when no line reads them.
var builtinVaryings = map[string]string{
	"position": "vec4<f32>",
}

// varyingTypes is the closed set of types a varying may carry: f32 and its
// vec2/3/4 forms, plus the i32 and u32 variants.
var varyingTypes = func() map[string]bool {
	types := make(map[string]bool)
	for _, scalar := range []string{"f32", "i32", "u32"} {
		types[scalar] = true
		for n := 2; n <= 4; n++ {
			types[fmt.Sprintf("vec%d<%s>", n, scalar)] = true
		}
	}
	return types
}()

// sourceLines splits WGSL into lines, drops blank leading and trailing
// lines, and appends an empty sentinel line.
func sourceLines(wgsl string) []string {
	lines := strings.Split(wgsl, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return append(lines, "")
}

// leadingWhitespace returns the indentation prefix of a line.
func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// resolveVaryings applies the varyings pass to rendered WGSL.
//
// Parameters:
//   - wgsl: the rendered source
//
// Returns:
//   - string: source with unused assignments commented out and the
//     Varyings struct inserted
//   - error: type conflicts, missing assignments, reads inside the vertex
//     entry point, or unterminated assignments (wraps ErrTemplate)
func resolveVaryings(wgsl string) (string, error) {
	lines := sourceLines(wgsl)

	assigned := make(map[string][]int)
	used := make(map[string][]int)
	types := make(map[string]string)

	// First pass: find assignment lines and collect varying types.
	for linenr, line := range lines {
		loc := varyingSetterRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		name := line[loc[2]:loc[3]]
		hasAttr := loc[4] >= 0
		if _, ok := builtinVaryings[name]; ok {
			used[name] = nil
			types[name] = builtinVaryings[name]
		}
		typ := strings.ReplaceAll(strings.TrimSpace(strings.SplitN(line[loc[1]:], "(", 2)[0]), " ", "")
		if !varyingTypes[typ] {
			typ = ""
		}
		switch {
		case hasAttr:
			// An attribute write never pins the type.
		case typ == "":
			return "", fmt.Errorf("%w: varying %q assignment needs an explicit cast (of a correct type), e.g. `varyings.%s = f32(3.0);`:\n%s", ErrTemplate, name, name, line)
		case types[name] != "" && typ != types[name]:
			return "", fmt.Errorf("%w: varying %q assignment does not match expected type %s:\n%s", ErrTemplate, name, types[name], line)
		default:
			types[name] = typ
		}
		assigned[name] = append(assigned[name], linenr)
	}

	// Second pass: collect reads, reject reads inside the vertex entry
	// point, and locate the first function that mentions Varyings.
	structInsertPos := -1
	inVertexEntry := false
	currentFuncLine := 0
	for linenr, line := range lines {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "fn ") {
			currentFuncLine = linenr
			inVertexEntry = strings.HasPrefix(s, "fn "+VertexEntryPoint)
		}
		s = strings.SplitN(s, "//", 2)[0]
		if structInsertPos < 0 && strings.Contains(s, "Varyings") {
			structInsertPos = currentFuncLine
		}
		for _, m := range varyingGetterRe.FindAllStringSubmatch(" "+s, -1) {
			name := m[1]
			if slices.Contains(assigned[name], linenr) {
				continue
			}
			if inVertexEntry {
				return "", fmt.Errorf("%w: varying %q is read in the vertex entry point, but only writing is allowed:\n%s", ErrTemplate, name, s)
			}
			used[name] = append(used[name], linenr)
		}
	}

	// Every read name needs at least one assignment.
	for _, name := range sortedKeys(used) {
		if _, ok := assigned[name]; !ok {
			return "", fmt.Errorf("%w: varying %q is read, but not assigned:\n%s", ErrTemplate, name, lines[used[name][0]])
		}
	}

	// Comment out assignments of names nothing reads, spanning multi-line
	// statements through the terminating semicolon.
	for _, name := range sortedKeys(assigned) {
		if _, ok := used[name]; ok {
			continue
		}
		for _, linenr := range assigned[name] {
			line := lines[linenr]
			indent := leadingWhitespace(line)
			lines[linenr] = indent + "// unused: " + line[len(indent):]
			s := strings.TrimSpace(line)
			for !strings.HasSuffix(s, ";") {
				linenr++
				s = strings.TrimSpace(lines[linenr])
				if startsWithAny(s, "fn ", "struct ", "var ", "let ", "}") || linenr == len(lines)-1 {
					return "", fmt.Errorf("%w: varying %q assignment seems to be missing a semicolon:\n%s", ErrTemplate, name, line)
				}
				lines[linenr] = indent + "// " + s
			}
		}
	}

	// Synthesize and insert the struct.
	if structInsertPos >= 0 {
		if structInsertPos > 0 && strings.HasPrefix(strings.TrimLeft(lines[structInsertPos-1], " \t"), "@") {
			structInsertPos--
		}
		var slots, builtins []string
		for name := range used {
			if _, ok := builtinVaryings[name]; ok {
				builtins = append(builtins, name)
			} else {
				slots = append(slots, name)
			}
		}
		sort.Strings(slots)
		sort.Strings(builtins)
		structLines := []string{"struct Varyings {"}
		for slot, name := range slots {
			typ, ok := types[name]
			if !ok {
				return "", fmt.Errorf("%w: varying %q is read but never assigned with a type", ErrTemplate, name)
			}
			structLines = append(structLines, fmt.Sprintf("    @location(%d) %s : %s,", slot, name, typ))
		}
		for _, name := range builtins {
			structLines = append(structLines, fmt.Sprintf("    @builtin(%s) %s : %s,", name, name, types[name]))
		}
		structLines = append(structLines, "};\n")
		indent := leadingWhitespace(lines[structInsertPos])
		for i, line := range structLines {
			structLines[i] = indent + line
		}
		lines = slices.Insert(lines, structInsertPos, strings.Join(structLines, "\n"))
	} else if len(used) > 0 {
		return "", fmt.Errorf("%w: varyings are read but no function mentions the Varyings struct", ErrTemplate)
	}

	return strings.Join(lines, "\n"), nil
}

func startsWithAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
