package xenopsd

import "sync"

// TaskBridge maps a xenopsd-side task id (returned by a long-running call
// such as VM.start) to the xapi task ref that is waiting on it. Track
// records a pair and Resolve returns and forgets it; neither event pump
// calls either, so xenopsd task completion is not forwarded to xapi
// tasks through this type.
type TaskBridge struct {
	mu sync.Mutex
	m  map[string]string // xenopsd task id -> xapi task ref
}

func NewTaskBridge() *TaskBridge {
	return &TaskBridge{m: make(map[string]string)}
}

func (b *TaskBridge) Track(xenopsTaskID, xapiTaskRef string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[xenopsTaskID] = xapiTaskRef
}

func (b *TaskBridge) Resolve(xenopsTaskID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.m[xenopsTaskID]
	if ok {
		delete(b.m, xenopsTaskID)
	}
	return ref, ok
}
