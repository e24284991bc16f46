package db

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// record is one redo-log line: either a row write or a tombstone.
type record struct {
	Op    string          `json:"op"` // "put" | "delete"
	Class model.Class     `json:"class"`
	Ref   model.Ref       `json:"ref"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Journal is the coordinator's durability layer (§4.1): writes fan out to
// every configured on-disk database location, and a write is only
// considered durable once Quorum of them have accepted it. Falling short
// of quorum is a fatal condition: the process exits and relies on its
// service manager to restart it against a (hopefully) healthier set of
// disks, rather than continuing on uncertain state.
type Journal struct {
	mu        sync.Mutex
	locations []*location
	quorum    int

	// onQuorumFailure is called instead of os.Exit directly, so tests can
	// observe the failure without killing the test binary.
	onQuorumFailure func(error)
}

type location struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewJournal opens (creating if absent) the redo log file at each path.
// quorum is the minimum number of locations a write must reach to be
// considered durable; it is typically len(paths)/2+1 but the exact
// policy is left to the deployment, so it is passed explicitly.
func NewJournal(paths []string, quorum int, onQuorumFailure func(error)) (*Journal, error) {
	if onQuorumFailure == nil {
		onQuorumFailure = func(err error) {
			fmt.Fprintf(os.Stderr, "fatal: database write quorum lost: %v\n", err)
			os.Exit(1)
		}
	}

	j := &Journal{quorum: quorum, onQuorumFailure: onQuorumFailure}
	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open db location %s: %w", p, err)
		}
		j.locations = append(j.locations, &location{path: p, f: f, w: bufio.NewWriter(f)})
	}
	return j, nil
}

func (j *Journal) writeAll(rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		j.onQuorumFailure(fmt.Errorf("marshal redo record: %w", err))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	ok := 0
	for _, loc := range j.locations {
		if _, err := loc.w.Write(append(data, '\n')); err != nil {
			continue
		}
		if err := loc.w.Flush(); err != nil {
			continue
		}
		ok++
	}
	if ok < j.quorum {
		j.onQuorumFailure(fmt.Errorf("only %d/%d locations accepted write, need %d", ok, len(j.locations), j.quorum))
	}
}

// Append records a row write.
func (j *Journal) Append(class model.Class, ref model.Ref, row any) {
	data, err := json.Marshal(row)
	if err != nil {
		j.onQuorumFailure(fmt.Errorf("marshal row %s/%s: %w", class, ref, err))
		return
	}
	j.writeAll(record{Op: "put", Class: class, Ref: ref, Data: data})
}

// AppendDelete records a tombstone.
func (j *Journal) AppendDelete(class model.Class, ref model.Ref) {
	j.writeAll(record{Op: "delete", Class: class, Ref: ref})
}

// Flush writes a full snapshot (serialized by the caller, typically
// Store.Snapshot) to every location's `.snapshot` sibling file, bumps each
// location's `.generation` marker, and truncates the redo log — the
// periodic full-flush referenced in §4.1. If restorePath is non-empty and
// exists, its contents replace snapshot as the data written to every
// location, and the restore file is removed once the flush has reached
// quorum, satisfying the "restore file, deleted after one successful
// flush" rule in §6.
func (j *Journal) Flush(snapshot []byte, restorePath string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if restorePath != "" {
		if data, err := os.ReadFile(restorePath); err == nil {
			snapshot = data
		}
	}

	ok := 0
	for _, loc := range j.locations {
		genPath := loc.path + ".generation"
		snapPath := loc.path + ".snapshot"

		if err := os.WriteFile(snapPath, snapshot, 0o600); err != nil {
			continue
		}
		gen := uint64(0)
		if raw, err := os.ReadFile(genPath); err == nil {
			if n, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64); err == nil {
				gen = n
			}
		}
		if err := os.WriteFile(genPath, []byte(strconv.FormatUint(gen+1, 10)), 0o600); err != nil {
			continue
		}

		if err := loc.f.Truncate(0); err == nil {
			_, _ = loc.f.Seek(0, 0)
			loc.w = bufio.NewWriter(loc.f)
		}
		ok++
	}
	if ok < j.quorum {
		return fmt.Errorf("flush reached %d/%d locations, need %d", ok, len(j.locations), j.quorum)
	}

	if restorePath != "" {
		_ = os.Remove(restorePath)
	}
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var firstErr error
	for _, loc := range j.locations {
		_ = loc.w.Flush()
		if err := loc.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
