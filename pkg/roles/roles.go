// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) implement the
// corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
package roles

import (
	"context"

	"github.com/HerbHall/coldguard/pkg/models"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleEvaluator = "evaluator"
	RoleIngest    = "ingest"
	RoleArchive   = "archive"
)

// Evaluator is implemented by plugins that turn a temperature reading into
// an alert decision. Resolve via PluginResolver.ResolveByRole(RoleEvaluator).
type Evaluator interface {
	// Evaluate runs one reading through the decision pipeline and records it.
	Evaluate(ctx context.Context, temperature float64) (models.HybridResult, error)
}

// ReadingHistory is implemented by plugins that keep recorded readings.
type ReadingHistory interface {
	// Recent returns up to limit readings, newest first.
	Recent(ctx context.Context, limit int) ([]models.StoredReading, error)
}
