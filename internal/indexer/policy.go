package indexer

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/arkilian/colindex/internal/config"
	ierrors "github.com/arkilian/colindex/internal/errors"
	"github.com/arkilian/colindex/internal/observability"
)

// Target is the part of an Engine the policy acts on.
type Target interface {
	Properties() []string
	EnsureIndex(property string) error
	DropProperty(property string)
}

// ActionType represents the type of index action to perform.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionDrop   ActionType = "DROP"
)

// IndexAction represents an action to build or drop a property index.
type IndexAction struct {
	Type     ActionType
	Property string
}

// Policy decides which property indexes to build eagerly and which to drop,
// based on lookup statistics. It runs only when the host calls Apply, typically
// after replacing or re-sorting the collection, so that the first lookups after
// a reset do not pay for the full scan.
type Policy struct {
	stats           *observability.LookupStats
	warm            []string
	createThreshold int64
	dropThreshold   int64
	maxIndexes      int
	logger          *slog.Logger
}

// NewPolicy creates a policy from the index configuration.
func NewPolicy(stats *observability.LookupStats, cfg config.IndexConfig, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		stats:           stats,
		warm:            slices.Clone(cfg.WarmProperties),
		createThreshold: cfg.CreateThreshold,
		dropThreshold:   cfg.DropThreshold,
		maxIndexes:      cfg.MaxIndexes,
		logger:          logger.With("component", "index-policy"),
	}
}

// Evaluate determines which actions bring target in line with the statistics.
// Lookups older than the stats window are forgotten first. Warm properties are
// always created and never dropped; drops are listed before creates so that
// freed slots can be reused.
func (p *Policy) Evaluate(target Target) []IndexAction {
	var actions []IndexAction

	if p.stats != nil {
		p.stats.Prune()
	}

	existing := target.Properties()
	kept := make(map[string]bool, len(existing))
	for _, property := range existing {
		if slices.Contains(p.warm, property) || p.frequency(property) >= p.dropThreshold {
			kept[property] = true
			continue
		}
		actions = append(actions, IndexAction{Type: ActionDrop, Property: property})
	}

	create := func(property string) {
		if property == "" || kept[property] {
			return
		}
		actions = append(actions, IndexAction{Type: ActionCreate, Property: property})
		kept[property] = true
	}

	for _, property := range p.warm {
		create(property)
	}

	if p.stats == nil {
		return actions
	}
	for _, stats := range p.stats.TopProperties(p.maxIndexes + len(p.warm)) {
		if len(kept) >= p.maxIndexes {
			break
		}
		if stats.Frequency >= p.createThreshold {
			create(stats.Property)
		}
	}

	return actions
}

// Apply evaluates the policy and executes the resulting actions. It stops at
// the first failed build.
func (p *Policy) Apply(target Target) error {
	for _, action := range p.Evaluate(target) {
		switch action.Type {
		case ActionCreate:
			if err := target.EnsureIndex(action.Property); err != nil {
				return ierrors.Wrap(ierrors.ErrCategoryIndex, ierrors.CodeBuildFailed,
					fmt.Sprintf("failed to build index for property %s", action.Property), err).
					WithDetails(map[string]interface{}{"property": action.Property})
			}
			p.logger.Info("index created", "property", action.Property)
		case ActionDrop:
			target.DropProperty(action.Property)
			p.logger.Info("index dropped", "property", action.Property)
		default:
			return fmt.Errorf("unknown action type: %s", action.Type)
		}
	}
	return nil
}

func (p *Policy) frequency(property string) int64 {
	if p.stats == nil {
		return 0
	}
	stats, _ := p.stats.Get(property)
	return stats.Frequency
}
