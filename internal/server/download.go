package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/dataset"
	"github.com/sells-group/submit-service/internal/download"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	format, err := download.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.downloadError(w, err, key)
		return
	}

	out := &lazyResponse{w: w, contentType: format.ContentType(), filename: format.Filename()}
	stats, err := s.downloads.Run(r.Context(), out, key, format)
	if err != nil {
		if out.started {
			// Headers are gone; the client sees a truncated body.
			s.log.Warn("download: aborted mid-stream",
				zap.String("dataset", key),
				zap.Int64("bytes", stats.Bytes),
				zap.Error(err),
			)
			return
		}
		s.downloadError(w, err, key)
		return
	}
	out.start()

	s.log.Info("download: complete",
		zap.String("dataset", key),
		zap.String("format", string(format)),
		zap.Int("features", stats.Features),
		zap.Int64("bytes", stats.Bytes),
	)
}

func (s *Server) downloadError(w http.ResponseWriter, err error, key string) {
	status := downloadStatus(err)
	msg := err.Error()
	if errors.Is(err, dataset.ErrFeedNotConfigured) {
		msg = "Metadata feed is not configured"
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("download: failed", zap.String("dataset", key), zap.Error(err))
	} else {
		s.log.Warn("download: rejected", zap.String("dataset", key), zap.Error(err))
	}
	writeJSONError(w, status, msg)
}

func downloadStatus(err error) int {
	var (
		ve *apperr.ValidationError
		fe *apperr.UnsupportedFormatError
		nf *apperr.DatasetNotFoundError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &fe), errors.As(err, &nf):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
