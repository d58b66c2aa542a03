// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDFContentType(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"application/pdf", true},
		{"application/pdf; charset=binary", true},
		{"Application/PDF", true},
		{"text/html; charset=utf-8", false},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDFContentType(tt.header))
		})
	}
}

func TestFetchPDF(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "papers-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	r := &Retrier{Client: ts.Client(), MaxRetries: 1}

	data, err := r.FetchPDF(context.Background(), ts.URL+"/paper.pdf", "papers-test")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	_, err = r.FetchPDF(context.Background(), ts.URL+"/landing", "papers-test")
	assert.True(t, errors.Is(err, ErrNotPDF))

	_, err = r.FetchPDF(context.Background(), ts.URL+"/gone", "papers-test")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
}
