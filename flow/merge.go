package flow

import "slices"

// MergePolicy resolves a merge collision: existing and incoming are rules
// for the same (action, source state). The returned rule replaces existing.
// Both arguments are private copies the policy may modify.
type MergePolicy[T Subject] func(existing, incoming *Rule[T]) *Rule[T]

// ReplacePolicy lets the incoming rule replace the existing one wholesale,
// so the last applied declaration wins. Merging the same block twice under
// this policy gives the same table as merging it once.
func ReplacePolicy[T Subject]() MergePolicy[T] {
	return func(_, incoming *Rule[T]) *Rule[T] {
		return incoming
	}
}

// AdditivePolicy blends colliding rules: existing effects run before
// incoming ones, both guards must pass, and the incoming destination is
// used only when the incoming declaration supplied one.
func AdditivePolicy[T Subject]() MergePolicy[T] {
	return func(existing, incoming *Rule[T]) *Rule[T] {
		merged := &Rule[T]{
			to:      existing.to,
			resolve: existing.resolve,
			hasTo:   existing.hasTo,
			guard:   conjoin(existing.guard, incoming.guard),
			effects: slices.Concat(existing.effects, incoming.effects),
		}

		if incoming.hasTo {
			merged.to = incoming.to
			merged.resolve = incoming.resolve
			merged.hasTo = true
		}

		return merged
	}
}
