// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transport binds the operations each daemon kind exposes
// (§6's service surface) to gorilla/mux HTTP routers, one per daemon
// kind, each fronting an instance.Registry.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
)

// asRecords converts a slice of route variants to their Record form, so
// JSON responses carry field names (prefix, next_hop, ...) rather than
// the variants' unexported backing fields.
func asRecords[T rib.Route](items []T) []rib.Record {
	out := make([]rib.Record, 0, len(items))
	for _, item := range items {
		out = append(out, item.AsRecord())
	}
	return out
}

// WriteJSON encodes data as the response body with the given status
// code, matching the teacher's WriteJSON convention in internal/api.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Default().Error("failed encoding response body", "error", err)
	}
}

// WriteErrorCtx writes a structured JSON error body, matching the
// teacher's WriteErrorCtx(w, r, status, msg) call convention. The
// request is unused beyond the signature match; it exists so request
// context (request id, etc.) can be folded in later without touching
// every call site.
func WriteErrorCtx(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps an internal/errors Kind to the HTTP status the
// teacher's daemons return for it, per §6/§7.
func statusForErr(err error) int {
	switch errors.GetKind(err) {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindConfigInvalid, errors.KindValidation, errors.KindFieldMissing, errors.KindFieldUnknown, errors.KindProtocolDecode:
		return http.StatusBadRequest
	case errors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err's message at the status its Kind maps to.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	WriteErrorCtx(w, r, statusForErr(err), err.Error())
}

// bindJSON decodes the request body into dest, writing a 400 and
// returning false on failure, mirroring the teacher's BindJSON[T] helper
// in internal/api/generic_handlers.go.
func bindJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		WriteErrorCtx(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
