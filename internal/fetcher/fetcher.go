// Package fetcher reads resource collections from an automation-platform
// REST API (/api/v2/<type>/), following pagination and enriching each item
// with the type-specific detail used for comparison.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Observer receives one call per HTTP request issued by a Fetcher.
// status is zero when no response was received.
type Observer interface {
	ObserveRequest(ctx context.Context, source string, t resource.Type, status int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(context.Context, string, resource.Type, int, time.Duration) {}

// Fetcher reads collections from one API source.
type Fetcher struct {
	name     string
	baseURL  string
	creds    Credentials
	client   *http.Client
	observer Observer
	tracer   trace.Tracer

	// current is the type being fetched, for request observations.
	current resource.Type
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithObserver registers a request observer.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		if o != nil {
			f.observer = o
		}
	}
}

// New creates a fetcher for the source called name rooted at baseURL.
func New(name, baseURL string, creds Credentials, opts ...Option) *Fetcher {
	f := &Fetcher{
		name:     name,
		baseURL:  trimBase(baseURL),
		creds:    creds,
		client:   NewHTTPClient(true, 0),
		observer: nopObserver{},
		tracer:   otel.Tracer("github.com/yairfalse/towercmp/internal/fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the source name.
func (f *Fetcher) Name() string { return f.name }

// BaseURL returns the API root.
func (f *Fetcher) BaseURL() string { return f.baseURL }

type page struct {
	Next    *string `json:"next"`
	Results *[]item `json:"results"`
}

type item struct {
	Name    string         `json:"name"`
	Related map[string]any `json:"related"`
	Inputs  resource.Value `json:"inputs"`
}

// link returns a related link by key, or "" when absent.
func (i item) link(key string) string {
	s, _ := i.Related[key].(string)
	return s
}

// Fetch walks every page of the collection for t and returns the details
// keyed by normalized name. Any failed request aborts the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, t resource.Type) (*resource.Collection, error) {
	ctx, span := f.tracer.Start(ctx, "fetcher.fetch",
		trace.WithAttributes(
			attribute.String("source", f.name),
			attribute.String("resource_type", string(t)),
		),
	)
	defer span.End()

	f.current = t
	coll := resource.NewCollection(t)
	next := fmt.Sprintf("%s/api/v2/%s/", f.baseURL, t)
	pages := 0

	for next != "" {
		log.Info().Ctx(ctx).
			Str("source", f.name).
			Str("resource_type", string(t)).
			Str("url", next).
			Msg("fetching page")

		var p page
		if err := f.getJSON(ctx, next, &p); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch page failed")
			return nil, err
		}
		if p.Results == nil {
			err := fmt.Errorf("decode %s: response has no results", next)
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed page")
			return nil, err
		}
		pages++

		for _, it := range *p.Results {
			d, err := f.enrich(ctx, t, it)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "enrich failed")
				return nil, fmt.Errorf("enrich %s %q: %w", t, it.Name, err)
			}
			coll.Put(it.Name, d)
		}

		next = ""
		if p.Next != nil && *p.Next != "" {
			next = f.resolve(*p.Next)
		}
	}

	for _, name := range coll.Duplicates {
		log.Warn().Ctx(ctx).
			Str("source", f.name).
			Str("resource_type", string(t)).
			Str("name", name).
			Msg("duplicate normalized name, keeping last")
	}

	span.SetAttributes(
		attribute.Int("pages", pages),
		attribute.Int("resources", coll.Len()),
	)
	return coll, nil
}

// enrich derives the comparison detail of one item, issuing at most one
// dependent request.
func (f *Fetcher) enrich(ctx context.Context, t resource.Type, it item) (resource.Detail, error) {
	switch t {
	case resource.JobTemplates:
		return f.credentialNames(ctx, it.link("credentials"))
	case resource.Schedules:
		return f.namedURL(ctx, it.link("unified_job_template"))
	case resource.Credentials:
		if it.Inputs.IsNull() {
			return resource.Inputs{Fields: resource.Object(nil)}, nil
		}
		return resource.Inputs{Fields: it.Inputs}, nil
	case resource.Inventories:
		return f.hostCount(ctx, it.link("hosts"))
	default:
		return resource.Presence(true), nil
	}
}

func (f *Fetcher) credentialNames(ctx context.Context, link string) (resource.Detail, error) {
	names := resource.CredentialNames{}
	if link == "" {
		return names, nil
	}

	var p struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := f.getJSON(ctx, f.resolve(link), &p); err != nil {
		return nil, err
	}
	for _, c := range p.Results {
		names = append(names, c.Name)
	}
	return names, nil
}

func (f *Fetcher) namedURL(ctx context.Context, link string) (resource.Detail, error) {
	if link == "" {
		return resource.NamedURL{}, nil
	}

	var tmpl item
	if err := f.getJSON(ctx, f.resolve(link), &tmpl); err != nil {
		return nil, err
	}
	named := tmpl.link("named_url")
	if named == "" {
		return resource.NamedURL{}, nil
	}
	return resource.NamedURL{URL: named, Valid: true}, nil
}

func (f *Fetcher) hostCount(ctx context.Context, link string) (resource.Detail, error) {
	if link == "" {
		return resource.HostCount(0), nil
	}

	var p struct {
		Count int `json:"count"`
	}
	if err := f.getJSON(ctx, f.resolve(link), &p); err != nil {
		return nil, err
	}
	return resource.HostCount(p.Count), nil
}
