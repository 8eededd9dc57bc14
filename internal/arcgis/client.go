// Package arcgis queries ArcGIS Map/Feature Server layers for sample records.
package arcgis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/record"
)

// maxBody bounds a query response. The server caps the record count, so a
// response past this size is treated as unusable.
const maxBody = 32 << 20

// Client issues layer queries through a Fetcher.
type Client struct {
	fetcher fetcher.Fetcher
}

// NewClient returns a Client backed by f.
func NewClient(f fetcher.Fetcher) *Client {
	return &Client{fetcher: f}
}

// QueryURL builds the layer query for the first limit features with all attributes.
func QueryURL(serviceURL string, limit int) string {
	q := url.Values{}
	q.Set("outFields", "*")
	q.Set("where", "1=1")
	q.Set("resultRecordCount", strconv.Itoa(limit))
	q.Set("resultOffset", "0")
	q.Set("f", "json")
	return strings.TrimRight(serviceURL, "/") + "/query?" + q.Encode()
}

// Query fetches up to limit features from the layer at serviceURL and returns
// their attributes in response order. A single request is made. Non-200 responses,
// bodies that are not a feature set, and ArcGIS error payloads are *apperr.UpstreamError.
func (c *Client) Query(ctx context.Context, serviceURL string, limit int) ([]record.Record, error) {
	body, err := c.fetcher.Download(ctx, QueryURL(serviceURL, limit))
	if err != nil {
		return nil, relocate(err, serviceURL)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "arcgis: read cancelled")
		}
		return nil, &apperr.TransportError{Locator: serviceURL, Err: eris.Wrap(err, "arcgis: read response")}
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, malformed(serviceURL, data)
	}

	if e := v.Get("error"); e != nil {
		status := e.GetInt("code")
		if status == 0 {
			status = http.StatusBadGateway
		}
		zap.L().Warn("arcgis: query error",
			zap.String("source", serviceURL),
			zap.Int("code", status),
		)
		return nil, &apperr.UpstreamError{
			Locator:    serviceURL,
			StatusCode: status,
			Body:       string(e.GetStringBytes("message")),
		}
	}

	features := v.Get("features")
	if features == nil || features.Type() != fastjson.TypeArray {
		return nil, malformed(serviceURL, data)
	}

	items, _ := features.Array()
	out := make([]record.Record, 0, len(items))
	for _, f := range items {
		if len(out) == limit {
			break
		}
		attrs := f.Get("attributes")
		if attrs == nil || attrs.Type() != fastjson.TypeObject {
			out = append(out, record.New(0))
			continue
		}
		out = append(out, record.FromObject(attrs.GetObject()))
	}
	return out, nil
}

func malformed(locator string, data []byte) error {
	body := strings.TrimSpace(string(data))
	if len(body) > 512 {
		body = body[:512]
	}
	return &apperr.UpstreamError{Locator: locator, StatusCode: http.StatusOK, Body: body}
}

// relocate reports fetch failures against the layer URL rather than the query URL.
func relocate(err error, locator string) error {
	var ue *apperr.UpstreamError
	if errors.As(err, &ue) {
		ue.Locator = locator
		return ue
	}
	var te *apperr.TransportError
	if errors.As(err, &te) {
		te.Locator = locator
		return te
	}
	return err
}
