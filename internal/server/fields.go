package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/sample"
	"github.com/sells-group/submit-service/internal/source"
)

type fieldsResponse struct {
	Coverage    struct{}       `json:"coverage"`
	Type        string         `json:"type"`
	Compression string         `json:"compression,omitempty"`
	Data        string         `json:"data"`
	SourceData  *sample.Result `json:"source_data"`
	Conform     conform        `json:"conform"`
}

type conform struct {
	Type string `json:"type"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("source")
	if locator == "" {
		s.fieldsError(w, &apperr.ValidationError{Message: "'source' parameter is required"}, "")
		return
	}

	desc, err := source.Classify(locator)
	if err != nil {
		s.fieldsError(w, err, locator)
		return
	}

	res, desc, err := s.sampler.Sample(r.Context(), desc)
	if err != nil {
		s.fieldsError(w, err, locator)
		return
	}

	writeJSON(w, http.StatusOK, fieldsResponse{
		Type:        desc.Protocol.String(),
		Compression: desc.Compression.String(),
		Data:        desc.Locator,
		SourceData:  res,
		Conform:     conform{Type: desc.EncodedType.String()},
	})
}

// fieldsError answers every sample failure with 400 and the error text.
func (s *Server) fieldsError(w http.ResponseWriter, err error, locator string) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
	case apperr.IsCanceled(err):
		s.log.Debug("fields: request cancelled", zap.String("source", locator))
	default:
		s.log.Warn("fields: failed", zap.String("source", locator), zap.Error(err))
	}
	writeText(w, http.StatusBadRequest, err.Error())
}
