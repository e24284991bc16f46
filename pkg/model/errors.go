package model

import "fmt"

// ErrorCode is a stable, user-visible error code carried in the (code,
// args) ApiError shape: these are what clients see and build UX around,
// so the strings themselves are part of the contract and never change.
type ErrorCode string

const (
	ErrOperationBlocked               ErrorCode = "operation_blocked"
	ErrBadPowerState                  ErrorCode = "bad_power_state"
	ErrOtherOperationInProgress       ErrorCode = "other_operation_in_progress"
	ErrVMIsImmobile                   ErrorCode = "vm_is_immobile"
	ErrVMLacksFeature                 ErrorCode = "vm_lacks_feature"
	ErrVMNonSuspendable               ErrorCode = "vm_non_suspendable"
	ErrVMHasPCIAttached               ErrorCode = "vm_has_pci_attached"
	ErrSROperationNotSupported        ErrorCode = "sr_operation_not_supported"
	ErrVDIInUse                       ErrorCode = "vdi_in_use"
	ErrSRHasPBD                       ErrorCode = "sr_has_pbd"
	ErrSRNoPBDs                       ErrorCode = "sr_no_pbds"
	ErrSRNotEmpty                     ErrorCode = "sr_not_empty"
	ErrSRIndestructible               ErrorCode = "sr_indestructible"
	ErrSRIsLocalCacheSR               ErrorCode = "sr_is_cache_sr"
	ErrHostUnknownToMaster            ErrorCode = "host_unknown_to_master"
	ErrHostMasterCannotTalkBack       ErrorCode = "host_master_cannot_talk_back"
	ErrHostXAPIVersionHigherThanCoord ErrorCode = "host_xapi_version_higher_than_coordinator"
	ErrNotSupportedDuringUpgrade      ErrorCode = "not_supported_during_upgrade"
	ErrHAIsEnabled                    ErrorCode = "ha_is_enabled"
	ErrTaskCancelled                  ErrorCode = "task_cancelled"
	ErrHostNotEnoughFreeMemory        ErrorCode = "host_not_enough_free_memory"
	ErrVTPMAlreadyExists              ErrorCode = "vtpm_already_exists"
	ErrInternalError                  ErrorCode = "internal_error"
)

// ApiError is the (code, args) pair every client-visible failure takes,
// per §7's taxonomy. Args are positional and carry whatever context the
// code's documentation promises (e.g. bad_power_state carries the expected
// and actual power states).
type ApiError struct {
	Code ErrorCode
	Args []string
}

func NewApiError(code ErrorCode, args ...string) *ApiError {
	return &ApiError{Code: code, Args: args}
}

func (e *ApiError) Error() string {
	if len(e.Args) == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s %v", e.Code, e.Args)
}

// Is lets errors.Is(err, model.NewApiError(code)) match on code alone,
// ignoring args — useful in tests that only care which branch fired.
func (e *ApiError) Is(target error) bool {
	other, ok := target.(*ApiError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
