// Package apperr defines the typed failures surfaced by the sampling and download pipelines.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports a bad or missing request parameter.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnsupportedSourceError is returned when a locator matches none of the known source shapes.
type UnsupportedSourceError struct {
	Locator string
}

func (e *UnsupportedSourceError) Error() string {
	return "Unsupported type"
}

// UnsupportedFormatError is returned for an output format the download pipeline cannot produce.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Unsupported output format: %s", e.Format)
}

// TransportError wraps a connection-level failure reaching an upstream before any response.
type TransportError struct {
	Locator string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Error connecting to %s: %v", e.Locator, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx (or otherwise unusable) response from an upstream.
// Body holds the start of the response body for diagnostics.
type UpstreamError struct {
	Locator    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Error retrieving file %s: %s (%d)", e.Locator, e.Body, e.StatusCode)
}

// DecodeError wraps a malformed payload encountered mid-stream.
type DecodeError struct {
	Locator string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("Error decoding source: %v", e.Err)
	}
	return fmt.Sprintf("Error decoding %s: %v", e.Locator, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DatasetNotFoundError reports a metadata feed with no record for the requested key.
type DatasetNotFoundError struct {
	Key string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("Unable to find %s in metadata", e.Key)
}

// NoMatchingEntryError reports an archive without any entry of the wanted kind.
type NoMatchingEntryError struct {
	Locator string
	Want    string
}

func (e *NoMatchingEntryError) Error() string {
	return fmt.Sprintf("Could not find %s file in zip archive %s", e.Want, e.Locator)
}

// MetadataFeedError wraps a failure fetching or parsing the dataset metadata feed.
type MetadataFeedError struct {
	Locator string
	Err     error
}

func (e *MetadataFeedError) Error() string {
	return fmt.Sprintf("Error reading metadata feed %s: %v", e.Locator, e.Err)
}

func (e *MetadataFeedError) Unwrap() error {
	return e.Err
}

// WithLocator stamps locator onto err when err is a locator-bearing type created
// deeper in the pipeline without one. Other errors are returned unchanged.
func WithLocator(err error, locator string) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Locator == "" {
		de.Locator = locator
		return de
	}
	var te *TransportError
	if errors.As(err, &te) && te.Locator == "" {
		te.Locator = locator
		return te
	}
	return err
}

// IsCanceled reports whether err stems from context cancellation or deadline expiry.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
