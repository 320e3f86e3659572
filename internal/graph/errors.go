package graph

import (
	"reflect"
	"strings"
)

// CycleError reports an import cycle. Path starts and ends the cycle at the
// same module, the closing edge being implied.
type CycleError struct {
	Path []reflect.Type
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("import cycle detected:\n\n")

	for i, t := range e.Path {
		b.WriteString("    " + t.String() + "\n")
		if i < len(e.Path)-1 {
			b.WriteString("      ↓\n")
		}
	}
	if len(e.Path) > 0 {
		b.WriteString("      ↓\n")
		b.WriteString("    " + e.Path[0].String() + " (cycle)\n")
	}

	return b.String()
}
