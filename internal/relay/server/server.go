// Package server implements an in-memory reference directory/mailbox
// server against the spec §6 HTTP contract: account bundle upsert,
// substring search, one-shot OPK-consuming session bootstrap, and a
// per-account mailbox. It exists as a reference implementation of the
// directory the protocol core treats as an external collaborator; it is
// not itself part of the cryptographic core.
package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"ciphera/internal/domain"
)

// Networking limits, named and sized after the teacher's relay constants.
const (
	maxRequestBody = 1 << 20 // 1 MiB cap for incoming JSON bodies
	maxOPKPool     = 500     // cap one-time prekeys accepted in a single /create/
	maxCipherBytes = 64 << 10
	maxMailboxSize = 1000 // cap messages retained per account
)

type storedAccount struct {
	Name    domain.Username
	IKPub   domain.X25519Public
	SPKPub  domain.X25519Public
	SPKSig  []byte
	IKEdPub domain.Ed25519Public
	OPKs    []domain.OneTimePreKeyPublic // ordered; consumed from the front
}

// State holds the server's registered bundles, pending session requests,
// and per-account mailboxes. All access is serialized by mu.
type State struct {
	mu       sync.RWMutex
	accounts map[domain.Username]*storedAccount
	sessions map[domain.Username][]domain.SessionRequest // keyed by target
	mailbox  map[domain.Username][]domain.MailboxMessage // keyed by account

	logger *slog.Logger
	now    func() time.Time
}

// NewState returns an empty server state. logger may be nil to disable
// access logging.
func NewState(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(nopWriter{}, nil))
	}
	return &State{
		accounts: make(map[domain.Username]*storedAccount),
		sessions: make(map[domain.Username][]domain.SessionRequest),
		mailbox:  make(map[domain.Username][]domain.MailboxMessage),
		logger:   logger,
		now:      time.Now,
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Routes registers the eight POST endpoints against mux.
func (s *State) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /create/", s.handleCreate)
	mux.HandleFunc("POST /search/", s.handleSearch)
	mux.HandleFunc("POST /session/", s.handleSessionBundle)
	mux.HandleFunc("POST /create/session/", s.handleCreateSession)
	mux.HandleFunc("POST /list/session/", s.handleListSession)
	mux.HandleFunc("POST /get/session/", s.handleGetSession)
	mux.HandleFunc("POST /create/message/", s.handleCreateMessage)
	mux.HandleFunc("POST /message/", s.handleMessage)
}

// --- wire request/response shapes, mirroring internal/relay's client side ---

type wireOPK struct {
	ID  uint32 `json:"id"`
	Key string `json:"key"`
}

type createRequest struct {
	Account      domain.Username `json:"account"`
	IKPublic     string          `json:"ik_public"`
	SPKPublic    string          `json:"spk_public"`
	SPKSignature string          `json:"spk_signature"`
	IKEdPublic   string          `json:"ik_ed_public"`
	OPK          []wireOPK       `json:"opk"`
}

type searchRequest struct {
	Account domain.Username `json:"account"`
	Target  string          `json:"target"`
}

type sessionBundleRequest struct {
	Target domain.Username `json:"target"`
}

type sessionBundleResponse struct {
	Account      domain.Username `json:"account"`
	IKPublic     string          `json:"ik_public"`
	SPKPublic    string          `json:"spk_public"`
	SPKSignature string          `json:"spk_signature"`
	IKEdPublic   string          `json:"ik_ed_public"`
	OPK          string          `json:"opk"`
	ID           uint32          `json:"id"`
}

type createSessionRequest struct {
	Account domain.Username `json:"account"`
	Target  domain.Username `json:"target"`
	IKP     string          `json:"ikp"`
	EKP     string          `json:"ekp"`
	OPKID   uint32          `json:"opk_id"`
}

type listSessionRequest struct {
	Target domain.Username `json:"target"`
}

type getSessionRequest struct {
	Account domain.Username `json:"account"`
	Target  domain.Username `json:"target"`
}

type getSessionResponse struct {
	Account domain.Username `json:"account"`
	Target  domain.Username `json:"target"`
	IKP     string          `json:"ikp"`
	EKP     string          `json:"ekp"`
	OPKID   uint32          `json:"opk_id"`
}

type createMessageRequest struct {
	Account   domain.Username `json:"account"`
	Target    domain.Username `json:"target"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
}

type pollMessageRequest struct {
	Account domain.Username `json:"account"`
	Target  domain.Username `json:"target"`
}

type wireMessage struct {
	Account   domain.Username `json:"account"`
	Target    domain.Username `json:"target"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
}

// --- handlers ---

func (s *State) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Account == "" {
		writeErr(w, http.StatusBadRequest, "account required")
		return
	}
	if len(req.OPK) > maxOPKPool {
		writeErr(w, http.StatusRequestEntityTooLarge, "too many one-time keys")
		return
	}

	ik, err1 := hexDecode32(req.IKPublic)
	spk, err2 := hexDecode32(req.SPKPublic)
	spkSig, err3 := hex.DecodeString(req.SPKSignature)
	ikEd, err4 := hexDecode32(req.IKEdPublic)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		writeErr(w, http.StatusBadRequest, "malformed key material")
		return
	}

	opks := make([]domain.OneTimePreKeyPublic, 0, len(req.OPK))
	for _, o := range req.OPK {
		pub, err := hexDecode32(o.Key)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "malformed one-time key")
			return
		}
		opks = append(opks, domain.OneTimePreKeyPublic{ID: o.ID, Pub: domain.X25519Public(pub)})
	}

	s.mu.Lock()
	s.accounts[req.Account] = &storedAccount{
		Name:    req.Account,
		IKPub:   domain.X25519Public(ik),
		SPKPub:  domain.X25519Public(spk),
		SPKSig:  spkSig,
		IKEdPub: domain.Ed25519Public(ikEd),
		OPKs:    opks,
	}
	s.mu.Unlock()

	s.logger.Info("create", "account", req.Account, "opk_count", len(opks))
	w.WriteHeader(http.StatusOK)
}

func (s *State) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.RLock()
	var names []domain.Username
	for name := range s.accounts {
		if name == req.Account {
			continue
		}
		if strings.Contains(string(name), req.Target) {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	writeJSON(w, names)
}

func (s *State) handleSessionBundle(w http.ResponseWriter, r *http.Request) {
	var req sessionBundleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Target]
	if !ok || len(acct.OPKs) == 0 {
		s.mu.Unlock()
		writeErr(w, http.StatusNotFound, "account or one-time key not found")
		return
	}
	opk := acct.OPKs[0]
	acct.OPKs = acct.OPKs[1:] // one-shot consumption (spec §5 "shared resources")
	s.mu.Unlock()

	writeJSON(w, sessionBundleResponse{
		Account:      acct.Name,
		IKPublic:     hex.EncodeToString(acct.IKPub.Slice()),
		SPKPublic:    hex.EncodeToString(acct.SPKPub.Slice()),
		SPKSignature: hex.EncodeToString(acct.SPKSig),
		IKEdPublic:   hex.EncodeToString(acct.IKEdPub.Slice()),
		OPK:          hex.EncodeToString(opk.Pub.Slice()),
		ID:           opk.ID,
	})
}

func (s *State) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ik, err1 := hexDecode32(req.IKP)
	ek, err2 := hexDecode32(req.EKP)
	if err1 != nil || err2 != nil {
		writeErr(w, http.StatusBadRequest, "malformed key material")
		return
	}

	sessReq := domain.SessionRequest{
		Account: req.Account,
		Target:  req.Target,
		IKPub:   domain.X25519Public(ik),
		EKPub:   domain.X25519Public(ek),
		OPKID:   req.OPKID,
	}

	s.mu.Lock()
	s.sessions[req.Target] = append(s.sessions[req.Target], sessReq)
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *State) handleListSession(w http.ResponseWriter, r *http.Request) {
	var req listSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.RLock()
	pending := s.sessions[req.Target]
	names := make([]domain.Username, 0, len(pending))
	for _, p := range pending {
		names = append(names, p.Account)
	}
	s.mu.RUnlock()

	writeJSON(w, names)
}

func (s *State) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var req getSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	pending := s.sessions[req.Target]
	idx := -1
	for i, p := range pending {
		if p.Account == req.Account {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		writeErr(w, http.StatusNotFound, "no pending session request")
		return
	}
	sessReq := pending[idx]
	s.sessions[req.Target] = append(pending[:idx], pending[idx+1:]...)
	s.mu.Unlock()

	writeJSON(w, getSessionResponse{
		Account: sessReq.Account,
		Target:  sessReq.Target,
		IKP:     hex.EncodeToString(sessReq.IKPub.Slice()),
		EKP:     hex.EncodeToString(sessReq.EKPub.Slice()),
		OPKID:   sessReq.OPKID,
	})
}

func (s *State) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Message)/2 > maxCipherBytes {
		writeErr(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = s.now().Unix()
	}

	msg := domain.MailboxMessage{
		Account:   req.Account,
		Target:    req.Target,
		Message:   req.Message,
		Timestamp: req.Timestamp,
	}

	s.mu.Lock()
	q := s.mailbox[req.Target]
	if len(q) >= maxMailboxSize {
		q = q[1:]
	}
	s.mailbox[req.Target] = append(q, msg)
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *State) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req pollMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	msgs := s.mailbox[req.Account]
	delete(s.mailbox, req.Account)
	s.mu.Unlock()

	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{Account: m.Account, Target: m.Target, Message: m.Message, Timestamp: m.Timestamp})
	}
	writeJSON(w, out)
}

// --- middleware and helpers ---

// WithRecover converts a handler panic into a 500 response instead of
// crashing the server.
func WithRecover(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeErr(w, http.StatusInternalServerError, "internal error")
			}
		}()
		h.ServeHTTP(w, r)
	})
}

// WithRequestID tags every request with a ULID, echoed back in a response
// header, so operators can correlate a client report with a server log
// line.
func WithRequestID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set("X-Request-Id", id)
		h.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("bad request: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func hexDecode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithLogging logs method, path, remote, status, and duration for every
// request.
func (s *State) WithLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		h.ServeHTTP(lrw, r)
		s.logger.Info("access",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", clientIP(r),
			"status", lrw.status,
			"dur", s.now().Sub(start),
		)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(p []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	return lrw.ResponseWriter.Write(p)
}
