package allowedops

// VBDChain and VIFChain are the lightweight chains: attachment objects
// mostly inherit their constraints from the VM/VDI or VM/Network they
// connect, so only blocked operations and concurrency apply directly to
// the attachment row itself. Plug/unplug preconditions (attached state,
// empty-drive checks for CD devices) are evaluated by pkg/services/vbd
// against the live row rather than duplicated here, since they depend on
// the CurrentlyAttached/Empty fields the chain has no need to see twice.
func VBDChain() []Predicate {
	return []Predicate{
		stepBlockedOperations,
		stepConcurrency(nil),
	}
}
