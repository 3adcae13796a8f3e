// Package push is the push-channel transport: a Redis pub/sub subscription
// carrying backend events into the reconciler, plus the outbound job-assign
// publish. Delivery is not guaranteed; the poll channel is the backstop.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
	"car2x-dashboard/internal/recon"
)

const (
	ChannelVehicles       = "v2x:vehicles"
	ChannelInfrastructure = "v2x:infrastructure"
	ChannelEmergency      = "v2x:emergency"
	ChannelJobResponses   = "v2x:jobs:response"
	ChannelJobAssign      = "v2x:jobs:assign"
)

var channelKinds = map[string]recon.EventKind{
	ChannelVehicles:       recon.EventVehicle,
	ChannelInfrastructure: recon.EventInfrastructure,
	ChannelEmergency:      recon.EventEmergency,
	ChannelJobResponses:   recon.EventJobResponse,
}

type Client struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewClient always returns a usable client; the error only reports that the
// broker did not answer the startup ping. The subscriber reconnects on its
// own and an unreachable broker must not take the dashboard down.
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	c := &Client{rdb: rdb, log: log.WithComponent("push")}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return c, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// PublishJobAssign distributes a newly created job to its target vehicles.
func (c *Client) PublishJobAssign(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job assign: %w", err)
	}
	if err := c.rdb.Publish(ctx, ChannelJobAssign, payload).Err(); err != nil {
		return fmt.Errorf("publish job assign: %w", err)
	}
	return nil
}

// Run subscribes to the backend channels and forwards every message to the
// reconciler intake until ctx is cancelled. A dropped subscription is
// reopened after a flat delay; failures are logged, never fatal.
func (c *Client) Run(ctx context.Context, r *recon.Reconciler) {
	for {
		if err := c.consume(ctx, r); err != nil {
			c.log.Warn().Err(err).Msg("push subscription lost, reconnecting")
			metrics.PushReconnects.Inc()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Client) consume(ctx context.Context, r *recon.Reconciler) error {
	sub := c.rdb.Subscribe(ctx, ChannelVehicles, ChannelInfrastructure, ChannelEmergency, ChannelJobResponses)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			kind, known := channelKinds[msg.Channel]
			if !known {
				continue
			}
			r.Submit(recon.Event{Kind: kind, Channel: "push", Payload: []byte(msg.Payload)})
		}
	}
}
