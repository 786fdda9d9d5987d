package engine

import (
	"fmt"
	"log/slog"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/config"
	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/formatter"
	"github.com/c360/streamcep/tree"
)

// Pattern is a compiled evaluation tree for SEQ(Trip+ a[], Trip b):
// a chain of same-entity trips whose final trip arrives at a target key.
type Pattern struct {
	LeafA  *tree.LeafNode
	LeafB  *tree.LeafNode
	Kleene *tree.KleeneNode
	Seq    *tree.SeqNode

	// Accessors extract the correlation keys the shedding inspector
	// walks partial matches with, in entity/origin/destination order.
	Accessors []condition.Accessor
}

// accessorFor resolves a payload key through the accessor registry,
// letting callers pre-register custom extraction. Unregistered keys fall
// back to plain field lookup.
func accessorFor(key string) condition.Accessor {
	if acc, err := condition.LookupAccessor(key); err == nil {
		return acc
	}
	return condition.FieldAccessor(key)
}

// CompilePattern builds the evaluation tree described by cfg and
// distributes the pattern conditions across its nodes. The config must
// already be validated.
func CompilePattern(cfg config.PatternConfig, logger *slog.Logger) (*Pattern, error) {
	entity := accessorFor(cfg.EntityKey)
	origin := accessorFor(cfg.OriginKey)
	dest := accessorFor(cfg.DestinationKey)

	targets := make(map[string]bool, len(cfg.TargetKeys))
	for _, k := range cfg.TargetKeys {
		targets[k] = true
	}

	window := cfg.Window.Std()
	leafA := tree.NewLeafNode("a", formatter.EventTypeTrip, window, logger)
	leafB := tree.NewLeafNode("b", formatter.EventTypeTrip, window, logger)

	mode := tree.ModeGreedy
	if cfg.Mode == config.ModeExhaustive {
		mode = tree.ModeExhaustive
	}

	kc := tree.NewKleeneNode("a", leafA, tree.KleeneConfig{
		MinSize: cfg.MinSize,
		MaxSize: cfg.MaxSize,
		Window:  window,
		Mode:    mode,
	}, logger)
	leafA.SetParent(kc)

	seq := tree.NewSeqNode(cfg.Name, kc, leafB, window, logger)
	kc.SetParent(seq)
	leafB.SetParent(seq)
	if cfg.ConsumeMatched {
		seq.SetConsumptionPolicy(tree.MatchSingle{})
	}

	composite := condition.NewAnd(
		condition.AdjacentEqual([]string{"a"}, entity),
		condition.NewAdjacent([]string{"a"}, dest, origin,
			func(a, b string) bool { return a == b }),
		&condition.Func{
			Names: []string{"a", "b"},
			Predicate: func(payloads []event.Payload) bool {
				if len(payloads) < 2 {
					return false
				}
				last := payloads[len(payloads)-1]
				prev := payloads[len(payloads)-2]
				return entity(prev) != "" &&
					entity(prev) == entity(last) &&
					dest(prev) == origin(last) &&
					targets[dest(last)]
			},
		},
	)

	kc.ApplyCondition(composite, []string{"a"})
	seq.ApplyCondition(composite, []string{"a", "b"})
	if composite.Len() != 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%d conditions left unclaimed", composite.Len()),
			"Pattern", "CompilePattern", "distribute conditions")
	}

	return &Pattern{
		LeafA:     leafA,
		LeafB:     leafB,
		Kleene:    kc,
		Seq:       seq,
		Accessors: []condition.Accessor{entity, origin, dest},
	}, nil
}
