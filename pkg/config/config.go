// Package config is the server-side configuration surface: read env
// vars, validate the required ones, apply sensible retry defaults.
// XAPI_ENV_FILE (or .env in the working directory) is loaded via
// subosito/gotenv before the environment is read.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"

	"github.com/xapi-core/xapi-core/internal/common/core"
)

// Config is the full set of settings a xapi-core process needs to start,
// honoring the environment variables documented below.
type Config struct {
	// Role is "coordinator" or "member" (spec §4.4). A member additionally
	// requires MasterAddress.
	Role string

	// DBPaths is the set of on-disk database locations this process's
	// journal fans out to (spec §4.1/§6).
	DBPaths []string
	// DBQuorum is the minimum number of DBPaths a write must reach.
	DBQuorum int

	PoolSecret string

	BindAddress   string
	MasterAddress string

	// XenopsdQueues maps a queue name to its Unix socket path (spec §4.5).
	XenopsdQueues map[string]string

	ScanConcurrency int

	Development  bool
	RetryMode    core.RetryMode
	RetryMaxTime time.Duration
}

var retryModeMap = map[string]core.RetryMode{
	"none":    core.None,
	"backoff": core.Backoff,
}

func ToRetryMode(mode string) core.RetryMode {
	if retry, ok := retryModeMap[mode]; ok {
		return retry
	}
	return core.None
}

const (
	errMissingRole     = `XAPI_ROLE is not set, please set it to "coordinator" or "member"`
	errMissingDBPaths  = `XAPI_DB_PATHS is not set, please set a comma-separated list of database file paths`
	errMissingMaster   = `XAPI_MASTER_ADDRESS must be set when XAPI_ROLE=member`
	errMissingPoolSecret = `XAPI_POOL_SECRET is not set`
)

// New loads a .env file (if present, via gotenv; its absence is not an
// error) and then builds a Config from the environment:
//
//   - XAPI_ROLE: "coordinator" or "member".
//   - XAPI_DB_PATHS: comma-separated database file paths.
//   - XAPI_DB_QUORUM: minimum write quorum, defaults to majority of paths.
//   - XAPI_POOL_SECRET: shared pool authentication secret.
//   - XAPI_BIND_ADDRESS: this host's own address, reported to the
//     coordinator when a member joins.
//   - XAPI_MASTER_ADDRESS: coordinator address, required when role=member.
//   - XAPI_XENOPSD_QUEUES: comma-separated name=socket-path pairs.
//   - XAPI_SCAN_CONCURRENCY: max concurrent SR scans, defaults to 4.
//   - XAPI_DEVELOPMENT: enable development-mode logging.
//   - XAPI_RETRY_MODE / XAPI_RETRY_MAX_TIME: peer RPC retry policy.
func New() (*Config, error) {
	// Optional env file: XAPI_ENV_FILE when set, else .env in the working directory.
	if envFile := os.Getenv("XAPI_ENV_FILE"); envFile != "" {
		_ = gotenv.Load(envFile)
	} else {
		_ = gotenv.Load()
	}

	role := os.Getenv("XAPI_ROLE")
	if role == "" {
		return nil, errors.New(errMissingRole)
	}

	dbPathsRaw := os.Getenv("XAPI_DB_PATHS")
	if dbPathsRaw == "" {
		return nil, errors.New(errMissingDBPaths)
	}
	dbPaths := splitCSV(dbPathsRaw)

	quorum := len(dbPaths)/2 + 1
	if v := os.Getenv("XAPI_DB_QUORUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			quorum = n
		}
	}

	poolSecret := os.Getenv("XAPI_POOL_SECRET")
	if poolSecret == "" {
		return nil, errors.New(errMissingPoolSecret)
	}

	masterAddress := os.Getenv("XAPI_MASTER_ADDRESS")
	if role == "member" && masterAddress == "" {
		return nil, errors.New(errMissingMaster)
	}

	queues := make(map[string]string)
	for _, pair := range splitCSV(os.Getenv("XAPI_XENOPSD_QUEUES")) {
		name, sock, ok := strings.Cut(pair, "=")
		if ok {
			queues[name] = sock
		}
	}

	scanConcurrency := 4
	if v := os.Getenv("XAPI_SCAN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			scanConcurrency = n
		}
	}

	retryMode := core.None
	if v := os.Getenv("XAPI_RETRY_MODE"); v != "" {
		retry, ok := retryModeMap[v]
		if !ok {
			fmt.Println("[ERROR] unknown XAPI_RETRY_MODE, disabling retries")
		} else {
			retryMode = retry
		}
	}

	retryMaxTime := 5 * time.Minute
	if v := os.Getenv("XAPI_RETRY_MAX_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			retryMaxTime = d
		} else {
			fmt.Println("[ERROR] failed to parse XAPI_RETRY_MAX_TIME, using default")
		}
	}

	development := false
	if v := os.Getenv("XAPI_DEVELOPMENT"); v != "" {
		development, _ = strconv.ParseBool(v)
	}

	return &Config{
		Role:            role,
		DBPaths:         dbPaths,
		DBQuorum:        quorum,
		PoolSecret:      poolSecret,
		BindAddress:     os.Getenv("XAPI_BIND_ADDRESS"),
		MasterAddress:   masterAddress,
		XenopsdQueues:   queues,
		ScanConcurrency: scanConcurrency,
		Development:     development,
		RetryMode:       retryMode,
		RetryMaxTime:    retryMaxTime,
	}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
