package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/limitlxx/kirito-sdk-sub003/logging"
	"github.com/limitlxx/kirito-sdk-sub003/membership"
)

type Config struct {
	ListenAddress  string
	MetricsAddress string
	APIKey         string
}

type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func malformedBodyError(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "malformed_body", Message: err.Error()}
}

// engineError maps the engine's error taxonomy onto HTTP statuses.
func engineError(err error) *Error {
	switch {
	case errors.Is(err, membership.ErrUnauthorized):
		return &Error{StatusCode: http.StatusForbidden, Code: "unauthorized", Message: err.Error()}
	case errors.Is(err, membership.ErrNotFound):
		return &Error{StatusCode: http.StatusNotFound, Code: "not_found", Message: err.Error()}
	case errors.Is(err, membership.ErrAlreadyExists):
		return &Error{StatusCode: http.StatusConflict, Code: "already_exists", Message: err.Error()}
	default:
		return &Error{StatusCode: http.StatusBadRequest, Code: "invalid_request", Message: err.Error()}
	}
}

func (error *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"code":    error.Code,
		"message": error.Message,
	})
}

func (error *Error) send(w http.ResponseWriter) {
	w.WriteHeader(error.StatusCode)
	jsonBytes, err := error.MarshalJSON()
	if err != nil {
		jsonBytes = []byte(`{"code": "unexpected_error", "message": "failed to marshal error"}`)
	}
	length, err := w.Write(jsonBytes)
	if err != nil || length != len(jsonBytes) {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

func parseScalar(field, value string) (*big.Int, *Error) {
	if value == "" {
		return nil, malformedBodyError(fmt.Errorf("%s is required", field))
	}
	out := new(big.Int)
	if err := membership.FromHex(out, value); err != nil {
		return nil, malformedBodyError(fmt.Errorf("%s: %v", field, err))
	}
	return out, nil
}

type createGroupHandler struct {
	engine *membership.Engine
}

func (handler createGroupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		GroupID uint64 `json:"group_id"`
		Admin   string `json:"admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		malformedBodyError(err).send(w)
		return
	}

	admin, herr := parseScalar("admin", req.Admin)
	if herr != nil {
		herr.send(w)
		return
	}

	err := handler.engine.CreateGroup(req.GroupID, admin)
	recordMutation("create_group", err)
	if err != nil {
		engineError(err).send(w)
		return
	}

	logging.Logger().Info().
		Uint64("group_id", req.GroupID).
		Msg("group created")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"group_id": req.GroupID,
		"admin":    membership.ToHex(admin),
	})
}

type setAdminHandler struct {
	engine *membership.Engine
}

func (handler setAdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		GroupID  uint64 `json:"group_id"`
		Caller   string `json:"caller"`
		NewAdmin string `json:"new_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		malformedBodyError(err).send(w)
		return
	}

	caller, herr := parseScalar("caller", req.Caller)
	if herr != nil {
		herr.send(w)
		return
	}
	newAdmin, herr := parseScalar("new_admin", req.NewAdmin)
	if herr != nil {
		herr.send(w)
		return
	}

	err := handler.engine.SetGroupAdmin(caller, req.GroupID, newAdmin)
	recordMutation("set_group_admin", err)
	if err != nil {
		engineError(err).send(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_id": req.GroupID,
		"admin":    membership.ToHex(newAdmin),
	})
}

type memberHandler struct {
	engine *membership.Engine
	remove bool
}

func (handler memberHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		GroupID    uint64 `json:"group_id"`
		Caller     string `json:"caller"`
		Commitment string `json:"commitment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		malformedBodyError(err).send(w)
		return
	}

	caller, herr := parseScalar("caller", req.Caller)
	if herr != nil {
		herr.send(w)
		return
	}
	commitment, herr := parseScalar("commitment", req.Commitment)
	if herr != nil {
		herr.send(w)
		return
	}

	var err error
	operation := "add_member"
	if handler.remove {
		operation = "remove_member"
		err = handler.engine.RemoveMember(caller, req.GroupID, commitment)
	} else {
		err = handler.engine.AddMember(caller, req.GroupID, commitment)
	}
	recordMutation(operation, err)
	if err != nil {
		engineError(err).send(w)
		return
	}

	size := handler.engine.GroupSize(req.GroupID)
	GroupSize.WithLabelValues(strconv.FormatUint(req.GroupID, 10)).Set(float64(size))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_id":     req.GroupID,
		"commitment":   membership.ToHex(commitment),
		"member_count": size,
		"merkle_root":  membership.ToHex(handler.engine.MerkleRoot(req.GroupID)),
	})
}

type groupInfoHandler struct {
	engine *membership.Engine
}

func (handler groupInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	groupID, err := strconv.ParseUint(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil {
		malformedBodyError(fmt.Errorf("group_id parameter required: %v", err)).send(w)
		return
	}

	response := map[string]interface{}{
		"group_id":     groupID,
		"member_count": handler.engine.GroupSize(groupID),
		"merkle_root":  membership.ToHex(handler.engine.MerkleRoot(groupID)),
	}
	if admin := handler.engine.GroupAdmin(groupID); admin != nil {
		response["admin"] = membership.ToHex(admin)
	}
	writeJSON(w, http.StatusOK, response)
}

type isMemberHandler struct {
	engine *membership.Engine
}

func (handler isMemberHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	groupID, err := strconv.ParseUint(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil {
		malformedBodyError(fmt.Errorf("group_id parameter required: %v", err)).send(w)
		return
	}
	commitment, herr := parseScalar("commitment", r.URL.Query().Get("commitment"))
	if herr != nil {
		herr.send(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_id":   groupID,
		"commitment": membership.ToHex(commitment),
		"member":     handler.engine.IsMember(groupID, commitment),
	})
}

type nullifierHandler struct {
	engine *membership.Engine
}

func (handler nullifierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hash, herr := parseScalar("hash", r.URL.Query().Get("hash"))
	if herr != nil {
		herr.send(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nullifier_hash": membership.ToHex(hash),
		"used":           handler.engine.IsNullifierUsed(hash),
	})
}

type verifyHandler struct {
	engine *membership.Engine
}

// ServeHTTP runs the verification protocol and, when ?consume=true is set
// and the proof checks out, marks the nullifier used. The verify/consume
// pair is not atomic inside the engine; this handler is the orchestrating
// caller the engine delegates that responsibility to.
func (handler verifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("error reading request body")
		malformedBodyError(err).send(w)
		return
	}

	var req struct {
		GroupID           uint64           `json:"group_id"`
		Signal            string           `json:"signal"`
		NullifierHash     string           `json:"nullifier_hash"`
		ExternalNullifier string           `json:"external_nullifier"`
		Proof             membership.Proof `json:"proof"`
	}
	if err := json.Unmarshal(buf, &req); err != nil {
		malformedBodyError(err).send(w)
		return
	}

	nullifierHash, herr := parseScalar("nullifier_hash", req.NullifierHash)
	if herr != nil {
		herr.send(w)
		return
	}
	externalNullifier, herr := parseScalar("external_nullifier", req.ExternalNullifier)
	if herr != nil {
		herr.send(w)
		return
	}

	requestID := uuid.New().String()
	start := time.Now()
	valid := handler.engine.VerifyProof(req.GroupID, []byte(req.Signal), nullifierHash, externalNullifier, req.Proof)
	recordVerification(valid, start)

	consume := r.URL.Query().Get("consume") == "true"
	consumed := false
	if valid && consume {
		handler.engine.MarkNullifierUsed(nullifierHash)
		NullifiersConsumed.Inc()
		consumed = true
	}

	logging.Logger().Info().
		Str("request_id", requestID).
		Uint64("group_id", req.GroupID).
		Bool("valid", valid).
		Bool("consumed", consumed).
		Msg("proof verification completed")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id":     requestID,
		"group_id":       req.GroupID,
		"valid":          valid,
		"consumed":       consumed,
		"nullifier_hash": membership.ToHex(nullifierHash),
	})
}

type healthHandler struct{}

func (handler healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewMux builds the API routing table for the given engine. Split out of
// Run so tests can drive the handlers through httptest.
func NewMux(engine *membership.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/group/create", createGroupHandler{engine: engine})
	mux.Handle("/group/admin", setAdminHandler{engine: engine})
	mux.Handle("/group/member/add", memberHandler{engine: engine})
	mux.Handle("/group/member/remove", memberHandler{engine: engine, remove: true})
	mux.Handle("/group", groupInfoHandler{engine: engine})
	mux.Handle("/group/member", isMemberHandler{engine: engine})
	mux.Handle("/nullifier", nullifierHandler{engine: engine})
	mux.Handle("/proof/verify", verifyHandler{engine: engine})
	mux.Handle("/health", healthHandler{})
	return mux
}

func Run(config *Config, engine *membership.Engine) RunningJob {
	if config.APIKey == "" {
		config.APIKey = getAPIKeyFromEnv()
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: config.MetricsAddress, Handler: metricsMux}
	metricsJob := spawnServerJob(metricsServer, "metrics server")
	logging.Logger().Info().Str("addr", config.MetricsAddress).Msg("metrics server started")

	corsHandler := handlers.CORS(
		handlers.AllowedHeaders([]string{
			"X-Requested-With",
			"Content-Type",
			"Authorization",
			"X-API-Key",
		}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	)

	apiHandler := corsHandler(conditionalAuthMiddleware(config.APIKey)(NewMux(engine)))
	apiServer := &http.Server{Addr: config.ListenAddress, Handler: apiHandler}
	apiJob := spawnServerJob(apiServer, "membership server")

	logging.Logger().Info().
		Str("addr", config.ListenAddress).
		Bool("auth_enabled", config.APIKey != "").
		Msg("membership server started")

	return CombineJobs(metricsJob, apiJob)
}

func spawnServerJob(server *http.Server, label string) RunningJob {
	start := func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("%s failed: %s", label, err))
		}
	}
	shutdown := func() {
		logging.Logger().Info().Msgf("shutting down %s", label)
		err := server.Shutdown(context.Background())
		if err != nil {
			logging.Logger().Error().Err(err).Msgf("error when shutting down %s", label)
		}
		logging.Logger().Info().Msgf("%s shut down", label)
	}
	return SpawnJob(start, shutdown)
}
