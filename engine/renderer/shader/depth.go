// depth.go implements the depth-output pass. When a fragment shader assigns
// `out.depth`, the GPU needs a frag_depth builtin on the output struct; the
// pass splices that field in right after the struct's opening line.
package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var depthSetterRe = regexp.MustCompile(`^\s*?out\.depth\s*?=`)

// resolveDepthOutput applies the depth pass to rendered WGSL.
//
// Parameters:
//   - wgsl: source after the varyings pass
//
// Returns:
//   - string: source with the frag_depth field inserted when depth is set
//   - error: depth set without a FragmentOutput definition (wraps
//     ErrTemplate)
func resolveDepthOutput(wgsl string) (string, error) {
	lines := sourceLines(wgsl)

	depthIsSet := false
	structLine := -1
	for linenr, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "struct FragmentOutput {") {
			structLine = linenr
		} else if depthSetterRe.MatchString(line) {
			depthIsSet = true
			if structLine >= 0 {
				break
			}
		}
	}

	if depthIsSet {
		if structLine < 0 {
			return "", fmt.Errorf("%w: FragmentOutput definition not found", ErrTemplate)
		}
		indent := leadingWhitespace(lines[structLine])
		lines = slices.Insert(lines, structLine+1, indent+"    @builtin(frag_depth) depth : f32,")
	}

	return strings.Join(lines, "\n"), nil
}
