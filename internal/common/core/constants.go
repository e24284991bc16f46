package core

// RetryMode selects how an RPC to an external collaborator (xenopsd, SMAPI,
// a peer host) is retried on a transient failure.
type RetryMode int

const (
	None RetryMode = iota // specifies that no retries will be made
	// Specifies that exponential backoff will be used for certain retryable
	// errors. A guest still booting can race a device unplug/plug against
	// PV driver attach; this mode lets a caller ride that window out
	// instead of surfacing a spurious internal_error.
	Backoff
)

const (
	// ClientAPIPath is where the JSON-RPC client surface (pkg/rpc/clientapi)
	// is served, over both HTTPS and the Unix domain socket listener.
	ClientAPIPath = "rpc/v1"

	// ReplicationPath is where a member pulls the database and receives
	// per-write deltas from the coordinator.
	ReplicationPath = "replication/v1"
)
