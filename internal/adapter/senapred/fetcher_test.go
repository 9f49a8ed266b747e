package senapred

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const indexHTML = `<html><body>
<nav><a href="/alertas/">Todas las alertas</a><a href="/contacto">Contacto</a></nav>
<ul>
<li><a href="/alerta/alerta-roja-2026-08-14-18-30-valparaiso">Alerta Roja</a></li>
<li><a href="https://senapred.cl/alerta/alerta-amarilla-2026-08-15-maule">Alerta Amarilla</a></li>
<li><a href="/alerta/alerta-roja-2026-08-14-18-30-valparaiso">Alerta Roja (repetida)</a></li>
<li><a href="ftp://senapred.cl/alerta/ignorar">mal enlace</a></li>
</ul>
</body></html>`

const detailHTML = `<html><head>
<style>body { color: red; }</style>
<script>var tracking = "ignored";</script>
</head><body>
<h1>SENAPRED declara Alerta Roja</h1>
<p>para la Región de   Valparaíso
por incendio forestal.</p>
</body></html>`

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL+"/alertas/", baseURL, 5*time.Second, 0, logger)
}

func TestListLocators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alertas/", r.URL.Path)
		io.WriteString(w, indexHTML)
	}))
	defer srv.Close()

	locators, err := testClient(t, srv.URL).ListLocators(context.Background())
	require.NoError(t, err)

	// Relative links absolutized, document order kept, duplicate and
	// non-detail links dropped.
	assert.Equal(t, []string{
		srv.URL + "/alerta/alerta-roja-2026-08-14-18-30-valparaiso",
		"https://senapred.cl/alerta/alerta-amarilla-2026-08-15-maule",
	}, locators)
}

func TestListLocators_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).ListLocators(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alerta/alerta-roja-2026-08-14-18-30-valparaiso", r.URL.Path)
		io.WriteString(w, detailHTML)
	}))
	defer srv.Close()

	text, err := testClient(t, srv.URL).FetchPage(context.Background(), srv.URL+"/alerta/alerta-roja-2026-08-14-18-30-valparaiso")
	require.NoError(t, err)

	assert.Equal(t, "SENAPRED declara Alerta Roja para la Región de Valparaíso por incendio forestal.", text)
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailHTML)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(t, srv.URL).FetchPage(ctx, srv.URL+"/alerta/x")
	require.Error(t, err)
}

func TestFlattenText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(detailHTML))
	require.NoError(t, err)

	text := FlattenText(doc)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color")
	assert.Contains(t, text, "Alerta Roja para la Región de Valparaíso")
}
