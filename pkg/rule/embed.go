package rule

import "embed"

// builtinRulesFS embeds the built-in lint rules shipped with the tool.
//
//go:embed rules/*.yml
var builtinRulesFS embed.FS
