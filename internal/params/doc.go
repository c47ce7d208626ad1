// Package params turns raw Rainmaker node entries into typed parameters.
//
// A Rainmaker node describes its parameters twice: static metadata (name,
// data_type, properties, bounds) under config.devices[0].params, and live
// values under params.<service>. NormalizeNode merges the two into a
// ParameterMap, one *Parameter per metadata entry.
//
// Normalization is per node. Normalize returns one NodeResult for every
// entry, and Fold collects the good ones into an immutable Snapshot:
//
//	results := params.Normalize(list.Nodes, "multicontrol")
//	snap, skipped, err := params.Fold(results)
//	if errors.Is(err, params.ErrEmptySnapshot) {
//	    // every node was malformed; keep the previous snapshot
//	}
//
// Capability checks are typed: DataType, Properties.Writable and Bounds
// are decoded once here so that entity predicates never inspect raw JSON.
package params
