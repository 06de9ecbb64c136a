// Package share encodes playground buffers into compact URL-safe tokens so a
// snippet can be shared as a link.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/klauspost/compress/flate"
)

// QueryParam is the URL query parameter carrying a shared snippet.
const QueryParam = "s"

// MaxDecodedBytes bounds the inflated size of a shared snippet.
const MaxDecodedBytes = 1 << 20

// ErrInvalidPayload is returned for tokens that do not decode to a snippet.
var ErrInvalidPayload = errors.New("invalid share payload")

// Encode compresses code into a base64url token.
func Encode(code domain.Code) (string, error) {
	raw, err := json.Marshal(code)
	if err != nil {
		return "", fmt.Errorf("marshal snippet: %w", err)
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress snippet: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("flush compressor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. Any malformed token yields ErrInvalidPayload.
func Decode(token string) (domain.Code, error) {
	var code domain.Code
	if token == "" {
		return code, ErrInvalidPayload
	}
	compressed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return code, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, MaxDecodedBytes+1))
	if err != nil {
		return code, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) > MaxDecodedBytes {
		return code, fmt.Errorf("%w: snippet too large", ErrInvalidPayload)
	}

	if err := json.Unmarshal(raw, &code); err != nil {
		return code, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return code, nil
}

// URL returns base with the encoded snippet in its query string. Existing
// query parameters other than the snippet are kept.
func URL(base string, code domain.Code) (string, error) {
	token, err := Encode(code)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, token)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
