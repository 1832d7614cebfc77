package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mcpstudio/internal/api"
	"mcpstudio/pkg/logging"
)

// maxBodyBytes bounds request bodies of the POST endpoints.
const maxBodyBytes = 1 << 20

// CallToolRequest is the body of POST /api/mcp/tools/call.
type CallToolRequest struct {
	ServerName string                 `json:"serverName"`
	ToolName   string                 `json:"toolName"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
}

// ReadResourceRequest is the body of POST /api/mcp/resources/read.
type ReadResourceRequest struct {
	ServerName string `json:"serverName"`
	URI        string `json:"uri"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	// Code is the JSON-RPC code when the server itself rejected the request.
	Code int `json:"code,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"connected": len(s.manager.GetConnectedServers()),
	})
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	statuses := s.manager.GetServerStatusesForUser(UserFromContext(r.Context()))
	if statuses == nil {
		statuses = []api.ServerStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	tools := s.manager.GetToolsForUser(r.Context(), UserFromContext(r.Context()))
	if tools == nil {
		tools = []api.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, tools)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	resources := s.manager.GetResourcesForUser(r.Context(), UserFromContext(r.Context()))
	if resources == nil {
		resources = []api.ResourceDescriptor{}
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	var req CallToolRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ServerName == "" || req.ToolName == "" {
		writeError(w, http.StatusBadRequest, errors.New("serverName and toolName are required"))
		return
	}

	name, err := s.resolve(r, req.ServerName)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	result, err := s.manager.CallTool(r.Context(), name, req.ToolName, req.Arguments)
	if err != nil {
		logging.Debug("HTTP", "Tool %s on %s failed: %v", req.ToolName, name, err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) readResource(w http.ResponseWriter, r *http.Request) {
	var req ReadResourceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ServerName == "" || req.URI == "" {
		writeError(w, http.StatusBadRequest, errors.New("serverName and uri are required"))
		return
	}

	name, err := s.resolve(r, req.ServerName)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	result, err := s.manager.ReadResource(r.Context(), name, req.URI)
	if err != nil {
		logging.Debug("HTTP", "Reading %s from %s failed: %v", req.URI, name, err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) resolve(r *http.Request, name string) (string, error) {
	if s.coord == nil {
		return name, nil
	}
	return s.coord.ResolveServerName(UserFromContext(r.Context()), name)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case api.IsConfigError(err):
		return http.StatusBadRequest
	case api.IsNotConnected(err):
		return http.StatusNotFound
	case api.IsUpstreamError(err):
		return http.StatusInternalServerError
	case api.IsTransportError(err), api.IsProcessExit(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("HTTP", "Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var upstream *api.UpstreamError
	if errors.As(err, &upstream) {
		resp.Code = upstream.Code
	}
	writeJSON(w, status, resp)
}
