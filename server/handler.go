package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PinkeshGjr/PIRService/metrics"
	"github.com/PinkeshGjr/PIRService/pir"
	"github.com/PinkeshGjr/PIRService/privacypass"
	"github.com/PinkeshGjr/PIRService/reload"
)

// TokenHeader carries the single-use authorization token.
const TokenHeader = "Privacy-Pass-Token"

// maxQueryBody bounds the request body; evaluation key sets dominate
// and stay well under this.
const maxQueryBody = 64 << 20

// DefaultQueryTimeout bounds one query end to end.
const DefaultQueryTimeout = 30 * time.Second

// QueryHandler serves the query and metadata endpoints.
type QueryHandler struct {
	publisher *reload.Publisher
	processor *pir.Processor
	verifier  *privacypass.Verifier
	log       *slog.Logger
	timeout   time.Duration
}

// NewQueryHandler creates the query handler. A zero timeout selects the
// default.
func NewQueryHandler(publisher *reload.Publisher, processor *pir.Processor, verifier *privacypass.Verifier, log *slog.Logger, timeout time.Duration) *QueryHandler {
	if log == nil {
		log = slog.Default()
	}
	if timeout == 0 {
		timeout = DefaultQueryTimeout
	}
	return &QueryHandler{
		publisher: publisher,
		processor: processor,
		verifier:  verifier,
		log:       log,
		timeout:   timeout,
	}
}

// RegisterRoutes registers the service routes.
func (h *QueryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/query", h.handleQuery)
	r.Get("/", h.handleInfo)
}

// generationDocument is the metadata clients fetch to build queries.
type generationDocument struct {
	Generation pir.GenerationInfo `json:"generation"`
	Params     json.RawMessage    `json:"params"`
}

// errorDocument is the error body: a code and a fixed per-category
// message, nothing derived from the request.
type errorDocument struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *QueryHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	gen, err := h.publisher.Current()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(errorDocument{Code: "unavailable", Message: "no database generation loaded"})
		return
	}
	defer gen.Release()

	doc := generationDocument{
		Generation: pir.InfoOf(gen),
		Params:     json.RawMessage(gen.ParamsBlob),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

func (h *QueryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if err := h.verifier.Authorize(r.Header.Get(TokenHeader)); err != nil {
		metrics.TokenRejected()
		h.log.Info("rejected query authorization", "err", err)
		h.writeError(w, pir.CodeAuth)
		return
	}

	var query pir.Query
	body := http.MaxBytesReader(w, r.Body, maxQueryBody)
	if err := json.NewDecoder(body).Decode(&query); err != nil {
		h.log.Info("undecodable query body", "err", err)
		h.writeError(w, pir.CodeProtocol)
		return
	}

	gen, err := h.publisher.Current()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(errorDocument{Code: "unavailable", Message: "no database generation loaded"})
		return
	}
	// The borrowed generation stays valid for this whole request even
	// if a new one is published mid-flight.
	defer gen.Release()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	started := time.Now()
	resp, err := h.processor.Evaluate(ctx, gen, &query)
	if err != nil {
		code, ok := pir.CodeOf(err)
		if !ok {
			code = pir.CodeCompute
		}
		metrics.QueryFailed(string(code))
		h.log.Warn("query failed", "code", string(code), "generation", gen.ID, "err", err)
		h.writeError(w, code)
		return
	}

	metrics.QueryOK()
	metrics.EvalSeconds(time.Since(started).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// writeError maps an error code to its HTTP status and generic body.
func (h *QueryHandler) writeError(w http.ResponseWriter, code pir.Code) {
	status := http.StatusInternalServerError
	switch code {
	case pir.CodeParamMismatch, pir.CodeProtocol:
		status = http.StatusBadRequest
	case pir.CodeAuth:
		status = http.StatusUnauthorized
	case pir.CodeTimeout:
		status = http.StatusGatewayTimeout
	case pir.CodeCompute:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorDocument{Code: string(code), Message: pir.PublicMessage(code)})
}
