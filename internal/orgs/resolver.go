// Package orgs maps caller-supplied organization identifiers to their
// middleware node targets.
package orgs

import (
	"errors"
	"fmt"
	"strings"

	"logshare/config"
)

// ErrUnknownOrg is returned for a missing or unrecognized organization
// identifier. There is deliberately no fallback endpoint: defaulting would
// route one tenant's transaction through another tenant's identity.
var ErrUnknownOrg = errors.New("unknown organization")

// Target is the resolved node configuration for one organization.
type Target struct {
	ID        string // canonical org id as configured
	Endpoint  string
	Namespace string
	API       string
}

// Resolver resolves organization identifiers against a static table.
// The table is read-only after construction; Resolve is safe for
// concurrent use and has no side effects.
type Resolver struct {
	targets map[string]Target
}

// NewResolver builds a resolver from the validated organization table.
func NewResolver(cfg *config.OrgsConfig) *Resolver {
	targets := make(map[string]Target, len(cfg.Orgs))
	for _, org := range cfg.Orgs {
		targets[canonical(org.ID)] = Target{
			ID:        org.ID,
			Endpoint:  org.Endpoint,
			Namespace: org.Namespace,
			API:       org.API,
		}
	}
	return &Resolver{targets: targets}
}

// Resolve matches id case-insensitively against the table.
func (r *Resolver) Resolve(id string) (Target, error) {
	key := canonical(id)
	if key == "" {
		return Target{}, fmt.Errorf("%w: empty identifier", ErrUnknownOrg)
	}
	target, ok := r.targets[key]
	if !ok {
		return Target{}, fmt.Errorf("%w: '%s'", ErrUnknownOrg, id)
	}
	return target, nil
}

// IDs returns the configured organization identifiers.
func (r *Resolver) IDs() []string {
	ids := make([]string, 0, len(r.targets))
	for _, t := range r.targets {
		ids = append(ids, t.ID)
	}
	return ids
}

func canonical(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
