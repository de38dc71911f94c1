package mcpserver

import (
	"strings"

	"github.com/starford/inkmath/internal/block"
)

const grammarURI = "inkmath://grammar"

// GrammarContract describes the JIIX documents the tree accepts. It is what
// LLM consumers should produce when calling load_jiix.
var GrammarContract = grammarHeader + tagList() + grammarFooter

func tagList() string {
	var b strings.Builder
	for _, t := range block.Tags() {
		b.WriteString("- `" + t + "`\n")
	}
	return b.String()
}

const grammarHeader = `# Inkmath JIIX Grammar

A document is a JSON object with ` + "`type: \"Math\"`" + `, ` + "`version: \"3\"`" + `
and an ` + "`expressions`" + ` array. Every expression is an object with a
` + "`type`" + ` tag, an ` + "`id`" + `, a ` + "`bounding-box`" + ` of
` + "`{x, y, width, height}`" + ` in millimetres, and optional ` + "`items`" + `
holding the ink as parallel ` + "`X`, `Y`, `T`, `F`" + ` arrays.

## Accepted type tags

`

const grammarFooter = `
## Rules

1. Leaves (` + "`number`, `symbol`" + `) carry a ` + "`label`" + ` and their own ink.
2. Operators and relations carry exactly two operands; the connective ink
   sits in the parent's ` + "`items`" + `.
3. ` + "`fraction`" + ` has a numerator and a denominator; ` + "`mixed`" + ` has a
   number followed by a fraction.
4. ` + "`square root`" + ` has an operand and an optional index before it.
5. Script tags carry a nucleus followed by one or two scripts in reading order.
6. ` + "`matrix`" + ` holds ` + "`rows`" + `, each with a ` + "`cells`" + ` array.
7. Any expression may be replaced by ` + "`{\"error\": \"Unsolved\"}`" + `.

A document that breaks these rules is rejected whole and the current tree is kept.
`
