package sharecodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// QueryParam is the query string parameter that carries the token in share links
const QueryParam = "data"

// SharedResultsPath is the page that renders a shared assessment
const SharedResultsPath = "/results/shared"

var (
	toURLSafe   = strings.NewReplacer("+", "-", "/", "_", "=", "")
	fromURLSafe = strings.NewReplacer("-", "+", "_", "/")
)

// Encode serializes data to JSON and returns a URL-safe base64 token.
// Data that could not be decoded again is rejected with a ValidationError.
func Encode(data *ShareableAssessmentData) (string, error) {
	if data == nil {
		return "", &EncodingError{Err: errors.New("nil payload")}
	}
	if err := data.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", &EncodingError{Err: err}
	}

	return toURLSafe.Replace(base64.StdEncoding.EncodeToString(payload)), nil
}

// Decode reverses Encode. It never returns partially populated data: any
// failure yields a nil payload and an error matching ErrInvalidLink.
func Decode(token string) (*ShareableAssessmentData, error) {
	padded := fromURLSafe.Replace(strings.TrimSpace(token))
	if rem := len(padded) % 4; rem != 0 {
		padded += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.DecodeString(padded)
	if err != nil {
		return nil, &DecodingError{Stage: "base64", Err: err}
	}

	// encoding/json silently replaces invalid UTF-8, which would hide corruption
	if !utf8.Valid(raw) {
		return nil, &DecodingError{Stage: "utf8", Err: errors.New("payload is not valid UTF-8")}
	}

	var data ShareableAssessmentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &DecodingError{Stage: "json", Err: err}
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}

	return &data, nil
}

// ShareURL builds the shareable results link for data under baseURL
func ShareURL(baseURL string, data *ShareableAssessmentData) (string, error) {
	token, err := Encode(data)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	u = u.JoinPath(SharedResultsPath)

	q := u.Query()
	q.Set(QueryParam, token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// TokenFromURL extracts the share token from a share link
func TokenFromURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", &DecodingError{Stage: "url", Err: err}
	}

	token := u.Query().Get(QueryParam)
	if token == "" {
		return "", &DecodingError{Stage: "url", Err: fmt.Errorf("missing %q parameter", QueryParam)}
	}

	return token, nil
}
