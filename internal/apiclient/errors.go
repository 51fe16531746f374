package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized matches any APIError with status 401.
// The client clears its stored token before returning it.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound reports a resource the backend answered with no body.
var ErrNotFound = errors.New("recurso não encontrado")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status     int
	StatusText string
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// ConnectionError means the backend could not be reached at all.
type ConnectionError struct {
	BaseURL  string
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Erro de Conexão: Não foi possível se comunicar com o servidor. "+
		"Verifique se o backend está rodando em %s e se não há problemas de rede ou CORS.", e.BaseURL)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// messageFromBody extracts detail or message from an error body.
// ok is false when the body is not JSON or carries neither field.
func messageFromBody(data []byte) (msg string, ok bool, err error) {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false, err
	}
	if d := detailText(body.Detail); d != "" {
		return d, true, nil
	}
	if body.Message != "" {
		return body.Message, true, nil
	}
	return "", false, nil
}

// detailText renders a detail field that may be a string or a list of validation errors.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(raw)
}
