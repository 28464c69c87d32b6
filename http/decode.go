package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"kidneyserve/ml"
)

// decodeRecord reads the request body as one JSON object. A charset other than UTF-8 in
// Content-Type is transcoded first; numbers stay json.Number until the pipeline coerces them.
func decodeRecord(r *http.Request) (ml.Record, error) {
	body, err := bodyReader(r)
	if err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ml.ErrMalformedRequest, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", ml.ErrMalformedRequest, err)
	}
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ml.ErrMalformedRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ml.ErrMalformedRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ml.ErrMalformedRequest)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: body must be a JSON object", ml.ErrMalformedRequest)
	}
	return ml.Record(obj), nil
}

func bodyReader(r *http.Request) (io.Reader, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("%w: empty body", ml.ErrMalformedRequest)
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return r.Body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Content-Type: %v", ml.ErrMalformedRequest, err)
	}

	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r.Body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported charset %q", ml.ErrMalformedRequest, charset)
	}
	return transform.NewReader(r.Body, enc.NewDecoder()), nil
}
