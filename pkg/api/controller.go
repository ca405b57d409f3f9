package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"bgp-cmdb/pkg/cmdb"
	"bgp-cmdb/pkg/model"
)

// kinds maps URL collection names to entity kinds.
var kinds = map[string]model.Kind{
	"devices":             model.KindDevice,
	"tenants":             model.KindTenant,
	"ip-addresses":        model.KindIPAddress,
	"asns":                model.KindASN,
	"route-policies":      model.KindRoutePolicy,
	"route-policy-terms":  model.KindRoutePolicyTerm,
	"peer-groups":         model.KindBGPPeerGroup,
	"device-bgp-sessions": model.KindDeviceBGPSession,
	"bgp-sessions":        model.KindBGPSession,
}

// PolicyRequest carries a route policy with its complete term list. On a terms update a
// missing policy keeps the stored attributes.
type PolicyRequest struct {
	Policy *model.RoutePolicy      `json:"policy,omitempty"`
	Terms  []model.RoutePolicyTerm `json:"terms"`
}

// PolicyResponse is a route policy with its terms in evaluation order.
type PolicyResponse struct {
	Policy *model.RoutePolicy      `json:"policy"`
	Terms  []model.RoutePolicyTerm `json:"terms"`
}

// sessionBody lets clients write the session password, which is never serialized back.
type sessionBody struct {
	*model.BGPSession
	Password *string `json:"password,omitempty"`
}

// RegisterRoutes wires the HTTP handlers on the provided mux.
func RegisterRoutes(mux *http.ServeMux, svc *cmdb.Service, hub *EventHub, metrics bool) {
	h := &handlers{svc: svc}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	if hub != nil {
		mux.HandleFunc("GET /api/v1/events", hub.HandleEvents)
	}

	mux.HandleFunc("GET /api/v1/journal", h.journal)
	mux.HandleFunc("POST /api/v1/route-policies", h.createPolicy)
	mux.HandleFunc("GET /api/v1/route-policies/{id}/terms", h.getTerms)
	mux.HandleFunc("PUT /api/v1/route-policies/{id}/terms", h.saveTerms)

	mux.HandleFunc("GET /api/v1/{kind}", h.list)
	mux.HandleFunc("POST /api/v1/{kind}", h.create)
	mux.HandleFunc("GET /api/v1/{kind}/{id}", h.get)
	mux.HandleFunc("PUT /api/v1/{kind}/{id}", h.update)
	mux.HandleFunc("DELETE /api/v1/{kind}/{id}", h.delete)
}

type handlers struct {
	svc *cmdb.Service
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.List(r.Context(), kind, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := refOf(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	rec, _, ok := decodeRecord(w, r, kind)
	if !ok {
		return
	}
	rec.SetKey(0)
	if err := h.svc.Create(r.Context(), rec); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := refOf(w, r)
	if !ok {
		return
	}
	rec, password, ok := decodeRecord(w, r, kind)
	if !ok {
		return
	}
	rec.SetKey(id)
	var opts []cmdb.UpdateOption
	if kind == model.KindBGPSession && !password {
		opts = append(opts, cmdb.KeepPassword())
	}
	out, err := h.svc.Update(r.Context(), rec, opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// delete answers 204 whether or not the row existed; the removed rows are not echoed.
func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := refOf(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Delete(r.Context(), model.Ref{Kind: kind, ID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Removed-Rows", strconv.Itoa(len(res.Removed)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Policy == nil {
		req.Policy = &model.RoutePolicy{}
	}
	req.Policy.ID = 0
	h.savePolicy(w, r, &req, http.StatusCreated)
}

func (h *handlers) saveTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := idOf(w, r)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Policy == nil {
		prev, err := h.svc.Get(r.Context(), model.KindRoutePolicy, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Policy = prev.(*model.RoutePolicy)
	}
	req.Policy.ID = id
	h.savePolicy(w, r, &req, http.StatusOK)
}

func (h *handlers) savePolicy(w http.ResponseWriter, r *http.Request, req *PolicyRequest, status int) {
	terms, err := h.svc.SavePolicyWithTerms(r.Context(), req.Policy, req.Terms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, PolicyResponse{Policy: req.Policy, Terms: terms})
}

func (h *handlers) getTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := idOf(w, r)
	if !ok {
		return
	}
	terms, err := h.svc.Terms(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

func (h *handlers) journal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func kindOf(w http.ResponseWriter, r *http.Request) (model.Kind, bool) {
	kind, ok := kinds[r.PathValue("kind")]
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
	}
	return kind, ok
}

func idOf(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil || id == 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func refOf(w http.ResponseWriter, r *http.Request) (model.Kind, uint, bool) {
	kind, ok := kindOf(w, r)
	if !ok {
		return "", 0, false
	}
	id, ok := idOf(w, r)
	return kind, id, ok
}

// decodeRecord reads the request body into a new record of kind. password reports whether
// a BGP session body carried the password field.
func decodeRecord(w http.ResponseWriter, r *http.Request, kind model.Kind) (rec model.Record, password, ok bool) {
	rec = model.New(kind)
	var target any = rec
	var body sessionBody
	if s, ok := rec.(*model.BGPSession); ok {
		body.BGPSession = s
		target = &body
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return nil, false, false
	}
	if body.Password != nil {
		body.BGPSession.Password = *body.Password
	}
	return rec, body.Password != nil, true
}

// errorResponse is the body of 400 and 409 answers.
type errorResponse struct {
	Error    string            `json:"error"`
	Problems []model.Problem   `json:"problems,omitempty"`
	InUse    *model.InUseError `json:"inUse,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inUse *model.InUseError
		verr  *model.ValidationError
	)
	switch {
	case errors.As(err, &inUse):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), InUse: inUse})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Problems: verr.Problems})
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		logrus.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}
