package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chapter-relay/internal/pipeline"
	"chapter-relay/pkg/apperr"
	"chapter-relay/pkg/logger"
)

// errorBody is the envelope of every failed call. Detail carries the
// underlying cause, such as the upstream's connection error.
type errorBody struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Raw      string `json:"raw,omitempty"`
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

type healthBody struct {
	Status          string `json:"status"`
	LocalProvider   bool   `json:"localProvider"`
	DefaultProvider string `json:"defaultProvider"`
}

func (s *Server) handleHealth(c *gin.Context) {
	local := false
	if s.opts.LocalProbe != nil {
		local = s.opts.LocalProbe(c.Request.Context())
	}
	c.JSON(http.StatusOK, healthBody{
		Status:          "ok",
		LocalProvider:   local,
		DefaultProvider: s.gen.DefaultProvider(),
	})
}

func (s *Server) handleModels(c *gin.Context) {
	credential := c.Query("credential")
	if credential == "" {
		credential = c.Query("api_key")
	}
	list, err := s.gen.Models(c.Request.Context(), c.Query("provider"), credential)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGenerate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !isNonEmptyObject(body) {
		writeError(c, apperr.ErrInvalidRequest)
		return
	}
	var req pipeline.GenerationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeError(c, apperr.Newf(apperr.CodeInvalidRequest, "Invalid %s", typeErr.Field).
				WithField(typeErr.Field, "string", typeErr.Value))
			return
		}
		writeError(c, apperr.ErrInvalidRequest)
		return
	}

	col, err := s.gen.Generate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func isNonEmptyObject(body []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return false
	}
	return len(obj) > 0
}

// writeError renders err as the error envelope with its mapped status.
func writeError(c *gin.Context, err error) {
	e := apperr.From(err)
	status := e.HTTPStatus()
	args := []any{"kind", e.Code, "status", status, "path", c.Request.URL.Path,
		"request_id", c.GetString(ctxRequestID)}
	if status >= http.StatusInternalServerError {
		logger.Error(err.Error(), args...)
	} else {
		logger.Warn(err.Error(), args...)
	}
	body := errorBody{
		Error:    e.Message,
		Kind:     string(e.Code),
		Category: string(e.Category()),
		Raw:      e.Raw,
		Field:    e.Field,
		Expected: e.Expected,
		Actual:   e.Actual,
	}
	if e.Err != nil {
		body.Detail = e.Err.Error()
	}
	c.JSON(status, body)
}
