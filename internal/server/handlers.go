package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"stockdash/internal/proxy"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Quote(r.Context(), r.URL.Query().Get("symbol"))
	s.writePayload(w, r, b, err)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.History(r.Context(), r.URL.Query().Get("symbol"))
	s.writePayload(w, r, b, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Search(r.Context(), r.URL.Query().Get("query"))
	s.writePayload(w, r, b, err)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := proxy.CheckContext(r.Context())
	defer cancel()
	res, err := s.svc.CheckCredentials(ctx)
	if err != nil {
		status := proxy.StatusCode(err)
		if proxy.KindOf(err) == proxy.KindInvalidCredential {
			status = http.StatusUnauthorized
		}
		s.writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Usage(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// writePayload writes proxy bytes verbatim, so cache hits are served as stored.
func (s *Server) writePayload(w http.ResponseWriter, r *http.Request, b []byte, err error) {
	if err != nil {
		s.writeError(w, r, proxy.StatusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := errorBody{Error: proxy.Message(err), Code: proxy.KindOf(err).String()}
	var pe *proxy.Error
	if errors.As(err, &pe) {
		body.Details = pe.Details
	}
	fields := []zap.Field{
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.String("code", body.Code),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Warn("request failed", fields...)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
