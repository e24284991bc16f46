package model

// HostRole is the closed set of roles a node can occupy in the pool (§4.5).
type HostRole string

const (
	RoleMaster HostRole = "master"
	RoleSlave  HostRole = "slave"
	RoleBroken HostRole = "broken"
)

// Host is one physical node in the pool.
type Host struct {
	Row

	NameLabel string
	Address   string

	Enabled bool

	Metrics Ref

	PBDs        []Ref
	ResidentVMs []Ref

	SoftwareVersion string // semver-parseable xapi build version
	APIVersionMajor int
	APIVersionMinor int

	ExternalAuthType string
	LocalCacheSR     Ref

	TLSVerificationEnabled bool
	OtherConfig            map[string]string
}

// Pool is the singleton cluster-wide row.
type Pool struct {
	Row

	Coordinator Ref

	HAEnabled                    bool
	HARebootVMOnInternalShutdown bool

	// Restrictions is the key->value feature-flag map (e.g.
	// restrict_hard_numa) honoured per §6.
	Restrictions map[string]string

	// RollingUpgradeInProgress is derived, not stored: true when any two
	// hosts in the pool report different SoftwareVersion majors/minors.
	RollingUpgradeInProgress bool

	GuestAgentConfig map[string]string
}
