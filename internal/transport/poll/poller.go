// Package poll is the pull-channel transport: a fixed-interval fetch of the
// backend REST API. It exists because push delivery is not guaranteed; a
// missed push event is reconciled here within one interval.
package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
	"car2x-dashboard/internal/recon"
)

type Poller struct {
	baseURL  string
	interval time.Duration
	client   *http.Client
	recon    *recon.Reconciler
	log      zerolog.Logger
}

func New(baseURL string, interval time.Duration, r *recon.Reconciler) *Poller {
	return &Poller{
		baseURL:  baseURL,
		interval: interval,
		client:   &http.Client{},
		recon:    r,
		log:      log.WithComponent("poller"),
	}
}

// Run polls unconditionally every interval for the process lifetime. No
// backoff: the dashboard stays interactive on stale state when the backend
// is unreachable.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
			t.Reset(p.interval)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	p.fetchKeyed(cctx, "/vehicles", recon.EventVehicle)
	p.fetchKeyed(cctx, "/infrastructure", recon.EventInfrastructure)
	p.fetchList(cctx, "/emergencies", recon.EventEmergency)
	p.fetchSnapshot(cctx, "/jobs", recon.EventJobSnapshot)
}

// fetchKeyed handles endpoints returning identifier-keyed maps; each value
// is one update event.
func (p *Poller) fetchKeyed(ctx context.Context, path string, kind recon.EventKind) {
	body, err := p.fetch(ctx, path)
	if err != nil {
		p.fail(path, err)
		return
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		p.fail(path, err)
		return
	}
	for _, raw := range items {
		p.recon.Submit(recon.Event{Kind: kind, Channel: "poll", Payload: raw})
	}
}

func (p *Poller) fetchList(ctx context.Context, path string, kind recon.EventKind) {
	body, err := p.fetch(ctx, path)
	if err != nil {
		p.fail(path, err)
		return
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		p.fail(path, err)
		return
	}
	for _, raw := range items {
		p.recon.Submit(recon.Event{Kind: kind, Channel: "poll", Payload: raw})
	}
}

// fetchSnapshot forwards the whole response body as one bulk event.
func (p *Poller) fetchSnapshot(ctx context.Context, path string, kind recon.EventKind) {
	body, err := p.fetch(ctx, path)
	if err != nil {
		p.fail(path, err)
		return
	}
	p.recon.Submit(recon.Event{Kind: kind, Channel: "poll", Payload: body})
}

func (p *Poller) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *Poller) fail(path string, err error) {
	metrics.PollFailures.Inc()
	p.log.Warn().Err(err).Str("path", path).Msg("poll failed")
}
