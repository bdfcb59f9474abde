// Package router turns an incoming delta message into the set of Update
// Jobs the rest of the pipeline must act on.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/rdfvalue"
)

type Op string

const (
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Job is one unit of work the Update Handler must reconcile.
type Job struct {
	Op       Op
	Subject  string
	TypeName string
}

func (j Job) Key() string {
	return j.Subject + "\x00" + j.TypeName
}

// Router computes applicable configs and root subjects for every triple of
// an incoming delta message. Root-subject resolution issues sudo SPARQL
// queries, since it must see the full graph regardless of any one job's
// eventual authorization scope.
type Router struct {
	Sudo  gateway.Gateway
	Model *config.Model
	Log   logging.Logger
}

func New(sudo gateway.Gateway, model *config.Model, log logging.Logger) *Router {
	return &Router{Sudo: sudo, Model: model, Log: log}
}

// Route processes every changeset in msg in order, inserts before deletes
// within each, and returns the resulting jobs.
func (r *Router) Route(ctx context.Context, msg rdfvalue.DeltaMessage) ([]Job, error) {
	var jobs []Job
	for _, changeset := range msg {
		inserts := rdfvalue.Dedup(changeset.Inserts)
		for _, t := range inserts {
			js, err := r.routeTriple(ctx, t, true)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, js...)
		}
		deletes := rdfvalue.Dedup(changeset.Deletes)
		for _, t := range deletes {
			js, err := r.routeTriple(ctx, t, false)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, js...)
		}
	}
	return jobs, nil
}

func opLabel(insert bool) string {
	if insert {
		return "insert"
	}
	return "delete"
}

func (r *Router) routeTriple(ctx context.Context, t rdfvalue.Triple, insert bool) ([]Job, error) {
	metrics.RouterTriplesRouted.WithLabelValues(opLabel(insert)).Inc()

	if t.Predicate.Value == rdfvalue.RDFType {
		configs := r.Model.ConfigsMatchingType(t.Object.Value)
		jobs := make([]Job, 0, len(configs))
		for _, def := range configs {
			if insert {
				jobs = append(jobs, Job{Op: OpUpdate, Subject: t.Subject.Value, TypeName: def.TypeName})
			} else {
				jobs = append(jobs, Job{Op: OpDelete, Subject: t.Subject.Value, TypeName: def.TypeName})
			}
		}
		return jobs, nil
	}

	configs := r.Model.ConfigsMatchingProperty(t.Predicate.Value)
	var jobs []Job
	for _, def := range configs {
		subjects, err := r.resolveRootSubjects(ctx, def, t, insert)
		if err != nil {
			return nil, err
		}
		for _, s := range subjects {
			jobs = append(jobs, Job{Op: OpUpdate, Subject: s, TypeName: def.TypeName})
		}
	}
	return jobs, nil
}

func (r *Router) resolveRootSubjects(ctx context.Context, def *config.TypeDefinition, t rdfvalue.Triple, insert bool) ([]string, error) {
	seen := map[string]struct{}{}
	var subjects []string

	for _, path := range def.FullPropertyPathsFor(t.Predicate.Value) {
		for i, step := range path {
			if step.Predicate != t.Predicate.Value {
				continue
			}
			notTail := i != len(path)-1
			forward := !step.Inverse
			objectIsLiteral := !t.Object.IsURI()
			if notTail && forward && objectIsLiteral {
				continue
			}

			anchorSubject, anchorObject := t.Subject.Value, t.Object.Value
			if step.Inverse {
				anchorSubject, anchorObject = anchorObject, anchorSubject
			}

			prefix := path[:i]
			suffix := path[i+1:]
			query := r.buildResolutionQuery(def, prefix, suffix, anchorSubject, anchorObject, t, insert)
			rows, err := r.Sudo.Select(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("%w: resolving root subjects: %v", indexsyncerrors.ErrQuery, err)
			}
			for _, row := range rows {
				s, ok := row["s"]
				if !ok {
					continue
				}
				if _, dup := seen[s.Value]; dup {
					continue
				}
				seen[s.Value] = struct{}{}
				subjects = append(subjects, s.Value)
			}
		}
	}
	return subjects, nil
}

func (r *Router) buildResolutionQuery(def *config.TypeDefinition, prefix, suffix config.PropertyPath, anchorSubject, anchorObject string, t rdfvalue.Triple, insert bool) string {
	typeValues := make([]string, len(def.RDFTypes))
	for i, rt := range def.RDFTypes {
		typeValues[i] = "<" + rt + ">"
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?s WHERE {\n")
	fmt.Fprintf(&b, "  ?s a ?type . FILTER(?type IN (%s)) .\n", strings.Join(typeValues, ", "))
	if len(prefix) == 0 {
		fmt.Fprintf(&b, "  VALUES ?s { <%s> }\n", anchorSubject)
	} else {
		fmt.Fprintf(&b, "  ?s %s <%s> .\n", prefix.SPARQLExpr(), anchorSubject)
	}
	if insert {
		fmt.Fprintf(&b, "  <%s> <%s> %s .\n", t.Subject.Value, t.Predicate.Value, t.Object.SPARQLTerm())
		if len(suffix) > 0 {
			fmt.Fprintf(&b, "  <%s> %s ?tail .\n", anchorObject, suffix.SPARQLExpr())
		}
	}
	b.WriteString("}")
	return b.String()
}
