// Package seed embeds the default question and agent catalogue used by
// cmd/migrate and by in-memory dev runs.
package seed

import _ "embed"

//go:embed default.yaml
var Default []byte
