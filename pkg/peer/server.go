package peer

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/blang/semver/v4"
	"github.com/gorilla/mux"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/bootstrap"
	"go.uber.org/zap"
)

// HelloHandler answers Pool.hello for an incoming peer. It is the
// coordinator-side counterpart of Client.HostStatusCheck: given the
// caller's address, decide whether this host can vouch for it.
type HelloHandler interface {
	Hello(hostAddress string) bootstrap.StatusResult
}

// Server exposes the peer-RPC surface (spec §6) over HTTP, routed with
// gorilla/mux, guarded by a constant-time comparison of the pool secret
// header against the configured secret.
type Server struct {
	log        *logger.Logger
	poolSecret string
	version    semver.Version
	hello      HelloHandler

	router *mux.Router
}

func NewServer(log *logger.Logger, poolSecret string, version semver.Version, hello HelloHandler) *Server {
	s := &Server{log: log, poolSecret: poolSecret, version: version, hello: hello}

	r := mux.NewRouter()
	sub := r.PathPrefix("/peer/v1").Subrouter()
	sub.Use(s.authenticate)
	sub.HandleFunc("/Pool.hello", s.handleHello).Methods(http.MethodPost)
	sub.HandleFunc("/Pool.master_version", s.handleMasterVersion).Methods(http.MethodGet)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get(poolSecretHeader)), []byte(s.poolSecret)) != 1 {
			s.log.Warn("peer call with bad pool secret", zap.String("remote", r.RemoteAddr))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	var req helloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	status := s.hello.Hello(req.HostAddress)
	writeJSON(w, helloResponse{Status: string(status)})
}

func (s *Server) handleMasterVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, versionResponse{Version: s.version.String()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
