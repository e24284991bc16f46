package allowedops

// VIFChain mirrors VBDChain: blocked operations and concurrency only, the
// network-side specifics being the caller's concern.
func VIFChain() []Predicate {
	return []Predicate{
		stepBlockedOperations,
		stepConcurrency(nil),
	}
}
