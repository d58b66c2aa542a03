// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/acquire"
	"github.com/pdiddy/papers/internal/cache"
	"github.com/pdiddy/papers/internal/container"
	"github.com/pdiddy/papers/internal/convert"
	"github.com/pdiddy/papers/internal/datalab"
	"github.com/pdiddy/papers/internal/httputil"
	"github.com/pdiddy/papers/internal/openalex"
	"github.com/pdiddy/papers/internal/zotero"
	"github.com/pdiddy/papers/pkg/types"
)

var errZoteroRequired = errors.New("zotero is not configured; set ZOTERO_USER_ID and ZOTERO_API_KEY")

// app holds the clients built from the loaded config.
type app struct {
	cfg    types.PipelineConfig
	log    *zap.Logger
	store  *cache.Store
	zotero *zotero.Client
}

func newApp(c types.PipelineConfig, log *zap.Logger) (*app, error) {
	root := c.Cache.Dir
	if root == "" {
		r, err := cache.DefaultRoot()
		if err != nil {
			return nil, err
		}
		root = r
	}
	a := &app{cfg: c, log: log, store: cache.NewStore(root)}
	if c.Zotero.Configured() {
		z, err := zotero.New(c.Zotero, c.HTTP, log.Named("zotero"))
		if err != nil {
			return nil, err
		}
		a.zotero = z
	}
	return a, nil
}

// requireZotero returns the Zotero client or errZoteroRequired.
func (a *app) requireZotero() (*zotero.Client, error) {
	if a.zotero == nil {
		return nil, errZoteroRequired
	}
	return a.zotero, nil
}

// pipeline wires the acquisition pipeline. The local extractor is chosen
// from extraction.backend; DataLab serves advanced modes when keyed.
func (a *app) pipeline(ctx context.Context) (*acquire.Pipeline, error) {
	local, err := convert.NewLocal(ctx, a.cfg.Extraction, container.DetectRuntime)
	if err != nil {
		return nil, err
	}
	router := &convert.Router{Local: local, Log: a.log.Named("convert")}
	if a.cfg.Datalab.APIKey != "" {
		dl, err := datalab.New(a.cfg.Datalab, a.cfg.HTTP, a.log.Named("datalab"))
		if err != nil {
			return nil, err
		}
		router.Advanced = convert.NewDatalab(dl)
	}

	p := &acquire.Pipeline{
		Works: openalex.New(a.cfg.OpenAlex, a.cfg.HTTP, a.log.Named("openalex")),
		Fetcher: &httputil.Retrier{
			Client:     &http.Client{Timeout: a.cfg.HTTP.Timeout},
			MaxRetries: a.cfg.HTTP.MaxRetries,
			Log:        a.log,
		},
		UserAgent:    a.cfg.HTTP.UserAgent,
		AllowedHosts: a.cfg.HTTP.AllowedHosts,
		Extractor:    router,
		Store:        a.store,
		Log:          a.log.Named("acquire"),
	}
	// Library stays a nil interface when Zotero is not configured.
	if a.zotero != nil {
		p.Library = a.zotero
		p.UserID = a.zotero.UserID()
	}
	return p, nil
}
