// Package gateway implements scoped SPARQL 1.1 Query/Update over HTTP for
// authorized reads, plus a sudo channel for catalog maintenance. It also
// declares the Search Engine contract the rest of the pipeline depends on.
package gateway

import (
	"context"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/rdfvalue"
)

// Binding is one SPARQL SELECT result row, keyed by variable name.
type Binding map[string]rdfvalue.Term

// Gateway issues SPARQL queries against the triplestore. Scoped() returns
// a view that attaches allowedGroups to every request it issues; Sudo
// bypasses authorization entirely and must only be used for catalog
// maintenance.
type Gateway interface {
	Select(ctx context.Context, query string) ([]Binding, error)
	Ask(ctx context.Context, query string) (bool, error)
	Update(ctx context.Context, query string) error

	Scoped(groups config.AllowedGroups) Gateway
}
