// Package cajaclient is a Go client for the /api/caja endpoints.
//
// Authentication state lives in a Sesion value created with NuevaSesion
// and ended with Cerrar; every call goes through it, there is no package
// level token. Inputs that can be rejected locally (non-positive amounts,
// empty orders, inconsistent payments) fail before any request is sent.
package cajaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
)

// ErrSesionCerrada is returned by every call made after Cerrar.
var ErrSesionCerrada = errors.New("cajaclient: sesión cerrada")

const basePath = "/api/caja"

// Opcion customizes a Sesion.
type Opcion func(*Sesion)

// ConHTTPClient replaces the default *http.Client.
func ConHTTPClient(c *http.Client) Opcion {
	return func(s *Sesion) { s.http = c }
}

// ConTimeout sets the per-request timeout of the default client.
func ConTimeout(d time.Duration) Opcion {
	return func(s *Sesion) { s.http.Timeout = d }
}

// Sesion is an authenticated connection to the caja API.
type Sesion struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NuevaSesion starts an authenticated session against baseURL (scheme and
// host, optionally with a path prefix) using a bearer token.
func NuevaSesion(baseURL, token string, opts ...Opcion) (*Sesion, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cajaclient: URL base inválida %q", baseURL)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("cajaclient: token vacío")
	}
	s := &Sesion{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Token returns the bearer token, or "" once the session is closed.
func (s *Sesion) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Cerrar forgets the token. Later calls fail with ErrSesionCerrada.
func (s *Sesion) Cerrar() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// do sends one request and decodes the {data: ...} envelope into out.
// Non-2xx responses become *apierror.Error, classified by the body's code
// and otherwise by status; transport failures are network errors.
func (s *Sesion) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token := s.Token()
	if token == "" {
		return ErrSesionCerrada
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cajaclient: encode body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	u := s.baseURL + basePath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("cajaclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return apierror.Network(err, "no se pudo contactar al servidor")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorDeRespuesta(resp)
	}
	if out == nil {
		return nil
	}
	env := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apierror.Network(err, "respuesta inválida del servidor")
	}
	return nil
}

func errorDeRespuesta(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apierror.APIError
	_ = json.Unmarshal(raw, &body)

	kind := apierror.KindFromStatus(resp.StatusCode)
	switch body.Code {
	case apierror.KindValidation, apierror.KindState, apierror.KindConflict,
		apierror.KindNotFound, apierror.KindNetwork:
		kind = body.Code
	}
	msg := body.Detail
	if msg == "" {
		msg = fmt.Sprintf("el servidor respondió %d", resp.StatusCode)
	}
	if kind == apierror.KindNetwork {
		return apierror.Network(fmt.Errorf("status %d", resp.StatusCode), "%s", msg)
	}
	return &apierror.Error{Kind: kind, Msg: msg}
}

func pathID(format string, ids ...string) string {
	esc := make([]any, len(ids))
	for i, id := range ids {
		esc[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, esc...)
}

func paginacion(q url.Values, p dto.Paginacion) {
	if p.Page > 0 {
		q.Set("page", fmt.Sprint(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", fmt.Sprint(p.Limit))
	}
}

func setSi(q url.Values, k, v string) {
	if v != "" {
		q.Set(k, v)
	}
}
