// Package mcp implements the session-oriented streaming front end: an
// MCP-style JSON-RPC protocol over HTTP where a handshake mints a session,
// later requests present the assigned identifier in a header, and a GET
// attaches a server-sent-event stream to the conversation.
package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"hue-mcp-gateway/internal/jsonrpc"
	"hue-mcp-gateway/internal/logctx"
)

const (
	sessionIDHeader = "Mcp-Session-Id"

	protocolVersion = "2024-11-05"
	serverName      = "hue-mcp-gateway"
	serverVersion   = "1.0.0"

	ssePingInterval = 25 * time.Second
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

type Handler struct {
	registry *Registry
	tools    *Toolset
	log      *slog.Logger
	mux      *http.ServeMux
}

func NewHandler(registry *Registry, tools *Toolset, log *slog.Logger) *Handler {
	h := &Handler{registry: registry, tools: tools, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", h.handlePost)
	mux.HandleFunc("GET /mcp", h.handleGet)
	mux.HandleFunc("DELETE /mcp", h.handleDelete)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// writeRPCError emits a structured protocol error: JSON-RPC shape with a
// null id when the fault could not be tied to a request.
func writeRPCError(w http.ResponseWriter, status int, id *jsonrpc.RequestID, code jsonrpc.ErrorCode, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(id, code, msg))
}

func writeRPCResult(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeRPCError(w, http.StatusUnsupportedMediaType, nil, jsonrpc.ErrorCodeInvalidRequest, "content-type must be application/json")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, "unreadable request body")
		return
	}
	req, err := jsonrpc.DecodeRequest(body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, err.Error())
		h.log.WarnContext(ctx, "rpc.decode.fail", slog.String("err", err.Error()))
		return
	}

	sessID := r.Header.Get(sessionIDHeader)
	if sessID == "" {
		// Only a handshake may arrive without a session; anything else is a
		// protocol error with no side effect.
		if req.Method != "initialize" {
			writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing session: expected initialize handshake")
			h.log.WarnContext(ctx, "session.missing")
			return
		}
		h.handleInitialize(w, r, req)
		return
	}

	sess, err := h.registry.Get(sessID)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "unknown or closed session")
		h.log.WarnContext(ctx, "session.unknown", slog.String("session_id", sessID))
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID()})

	if req.Method == "initialize" {
		writeRPCError(w, http.StatusConflict, req.ID, jsonrpc.ErrorCodeInvalidRequest, "session already initialized")
		return
	}

	if req.IsNotification() {
		// Peer-to-server notifications are acknowledged and otherwise inert.
		w.WriteHeader(http.StatusAccepted)
		h.log.DebugContext(ctx, "rpc.notification", slog.String("method", req.Method))
		return
	}

	resp := h.dispatch(r, sess, req)
	writeRPCResult(w, resp)
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	ctx := r.Context()
	sess := h.registry.Create()
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID()})

	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		// Roll the registration back; the peer never learned the id.
		_ = h.registry.Close(sess.ID())
		writeRPCError(w, http.StatusInternalServerError, req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		h.log.ErrorContext(ctx, "session.initialize.fail", slog.String("err", err.Error()))
		return
	}

	w.Header().Set(sessionIDHeader, sess.ID())
	writeRPCResult(w, resp)
	h.log.InfoContext(ctx, "session.initialize.ok")
}

func (h *Handler) dispatch(r *http.Request, sess *Session, req *jsonrpc.Request) *jsonrpc.Response {
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: sess.ID()})

	switch req.Method {
	case "ping":
		resp, _ := jsonrpc.NewResultResponse(req.ID, map[string]any{})
		return resp

	case "tools/list":
		resp, err := jsonrpc.NewResultResponse(req.ID, map[string]any{"tools": h.tools.List()})
		if err != nil {
			h.log.ErrorContext(ctx, "tools.list.fail", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		}
		return resp

	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "tools/call requires a tool name")
		}
		result, err := h.tools.Call(ctx, params.Name, params.Arguments)
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error())
		}
		resp, err := jsonrpc.NewResultResponse(req.ID, result)
		if err != nil {
			h.log.ErrorContext(ctx, "tools.call.encode.fail", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
		}
		return resp

	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// handleGet attaches a server-sent-event stream to an existing session. The
// stream is the session's transport handle: when the peer tears it down the
// session closes and its identifier is retired.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, _, err := contenttype.GetAcceptableMediaType(r, []contenttype.MediaType{eventStreamMediaType}); err != nil {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	sessID := r.Header.Get(sessionIDHeader)
	if sessID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing session id")
		return
	}
	sess, err := h.registry.Get(sessID)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "unknown or closed session")
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID()})

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	h.log.InfoContext(ctx, "sse.attach")
	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Peer tore the stream down; the conversation is over.
			_ = h.registry.Close(sess.ID())
			h.log.InfoContext(ctx, "session.close", slog.String("reason", "stream closed"))
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				_ = h.registry.Close(sess.ID())
				return
			}
			f.Flush()
		case msg, ok := <-sess.Events():
			if !ok {
				return
			}
			b, err := json.Marshal(msg)
			if err != nil {
				h.log.ErrorContext(ctx, "sse.encode.fail", slog.String("err", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", b); err != nil {
				_ = h.registry.Close(sess.ID())
				return
			}
			f.Flush()
		}
	}
}

// handleDelete is the peer's explicit session termination.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessID := r.Header.Get(sessionIDHeader)
	if sessID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing session id")
		return
	}
	if err := h.registry.Close(sessID); err != nil {
		writeRPCError(w, http.StatusNotFound, nil, jsonrpc.ErrorCodeInvalidRequest, "unknown or closed session")
		return
	}
	h.log.InfoContext(ctx, "session.close", slog.String("reason", "peer terminated"), slog.String("session_id", sessID))
	w.WriteHeader(http.StatusNoContent)
}
