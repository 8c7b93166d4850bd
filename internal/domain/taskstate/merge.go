package taskstate

// mergeInto folds src onto dst. The rule is one-level recursive: when both
// sides hold a map for the same key, the nested maps are merged key-by-key
// (the second level replaces outright); arrays and scalars replace; an
// explicit nil deletes the key. src is never mutated and nested maps are
// copied, so folding cannot alias the caller's entries.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, dstIsMap := dst[k].(map[string]any)
		if !dstIsMap {
			dst[k] = copyMap(srcMap)
			continue
		}
		merged := copyMap(dstMap)
		for k2, v2 := range srcMap {
			if v2 == nil {
				delete(merged, k2)
				continue
			}
			merged[k2] = v2
		}
		dst[k] = merged
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
