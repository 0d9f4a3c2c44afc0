/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package esdb

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/internal/discovery"
	"github.com/sabouaram/eventstore-client-go/internal/transport"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// Client is the facade over a cluster-aware connection to an event-store
// node. It is safe for concurrent use by multiple goroutines (§5).
type Client struct {
	spec   ConnectionSpec
	tlsCfg transport.TLSConfig
	logger Logger
	mgr    *transport.Manager
	reg    *streamerRegistry
	metrics *Metrics

	// newStreamsClient/newPersistentClient build the wire-level client
	// bound to an acquired channel. They default to the real
	// internal/transport constructors; tests substitute a fake
	// wire.StreamsClient/wire.PersistentSubscriptionsClient here so the
	// facade's retry/option/translation logic can be exercised without a
	// live server.
	newStreamsClient    func(*grpc.ClientConn) wire.StreamsClient
	newPersistentClient func(*grpc.ClientConn) wire.PersistentSubscriptionsClient
}

func (c *Client) streamsClient(conn *grpc.ClientConn) wire.StreamsClient {
	return c.newStreamsClient(conn)
}

func (c *Client) persistentSubsClient(conn *grpc.ClientConn) wire.PersistentSubscriptionsClient {
	return c.newPersistentClient(conn)
}

// ClientOption customizes a Client at construction time.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     Logger
	rootCAsPEM []byte
	metrics    *Metrics
}

// WithLogger installs a Logger. Nil installs the discard logger.
func WithLogger(l Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithRootCAs supplies PEM-encoded trust anchors for TLS verification.
// Loading the bytes themselves (file, secret store, ...) is the caller's
// job (§1).
func WithRootCAs(pem []byte) ClientOption {
	return func(o *clientOptions) { o.rootCAsPEM = pem }
}

// WithMetrics installs a Metrics sink. Nil (the default) disables metrics
// entirely; every call on a nil *Metrics is a no-op.
func WithMetrics(m *Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient parses connectionString and returns a Client. No network call
// is made until the first operation.
func NewClient(connectionString string, opts ...ClientOption) (*Client, error) {
	spec, err := ParseConnectionSpec(connectionString)
	if err != nil {
		return nil, err
	}
	return NewClientFromSpec(spec, opts...)
}

// NewClientFromSpec builds a Client from an already-parsed ConnectionSpec.
func NewClientFromSpec(spec ConnectionSpec, opts ...ClientOption) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		spec: spec,
		tlsCfg: transport.TLSConfig{
			Enabled:    spec.Tls,
			VerifyPeer: spec.TlsVerifyCert,
			RootCAsPEM: o.rootCAsPEM,
		},
		logger:  logOrDiscard(o.logger),
		reg:     newStreamerRegistry(),
		metrics: o.metrics,

		newStreamsClient:    transport.NewStreamsClient,
		newPersistentClient: transport.NewPersistentSubscriptionsClient,
	}
	c.mgr = transport.NewManager(c.dialSelectedNode)
	return c, nil
}

// Close stops every registered subscription reader and closes the active
// channel. Idempotent.
func (c *Client) Close() error {
	c.reg.stopAll()
	return c.mgr.Close()
}

// requiresLeader computes a requires-leader value for a call: an explicit
// override, or (by default) true iff NodePreference is leader. Nothing in
// the client calls it, and no request carries requires-leader metadata.
func (c *Client) requiresLeader(override *bool) bool {
	if override != nil {
		return *override
	}
	return c.spec.NodePreference == PreferLeader
}

// dialSelectedNode runs one discovery pass and dials the selected member.
// It is the transport.Dialer the connection Manager calls on Acquire and
// Reopen.
func (c *Client) dialSelectedNode(ctx context.Context) (*grpc.ClientConn, error) {
	seeds := make([]discovery.Seed, len(c.spec.Seeds))
	for i, s := range c.spec.Seeds {
		seeds[i] = discovery.Seed{Host: s.Host, Port: s.Port}
	}

	pref := toDiscoveryPreference(c.spec.NodePreference)

	reader := func(ctx context.Context, seed discovery.Seed) (wire.GossipResponse, error) {
		conn, err := transport.DialSeed(ctx, fmt.Sprintf("%s:%d", seed.Host, seed.Port), c.tlsCfg)
		if err != nil {
			return wire.GossipResponse{}, err
		}
		defer conn.Close()
		return transport.NewGossipClient(conn).Read(ctx)
	}

	result, err := discovery.Discover(ctx, seeds, reader, discovery.Options{
		MaxAttempts:       c.spec.MaxDiscoverAttempts,
		DiscoveryInterval: c.spec.DiscoveryInterval,
		GossipTimeout:     c.spec.GossipTimeout,
		Preference:        pref,
	})
	if err != nil {
		c.logger.Warnf("discovery failed: %v", err)
		return nil, err
	}

	c.logger.Debugf("discovery selected %s:%d (state=%s) via seed %s:%d",
		result.Member.Address, result.Member.Port, result.Member.State,
		result.ViaSeed.Host, result.ViaSeed.Port)

	target := fmt.Sprintf("%s:%d", result.Member.Address, result.Member.Port)
	opts, err := transport.DialOptions(c.tlsCfg, c.spec.KeepAliveInterval, c.spec.KeepAliveTimeout, c.spec.HasKeepAliveInterval)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, transport.Translate(err)
	}

	if c.metrics != nil {
		c.metrics.recordReopen()
	}

	return conn, nil
}

func toDiscoveryPreference(p NodePreference) discovery.Preference {
	switch p {
	case PreferFollower:
		return discovery.PreferFollower
	case PreferReadOnlyReplica:
		return discovery.PreferReadOnlyReplica
	case PreferRandom:
		return discovery.PreferRandom
	default:
		return discovery.PreferLeader
	}
}

// withRetry executes f against the currently-acquired channel. If f
// returns a reconnectable error (§7), the channel is reopened once and f
// is retried exactly once more.
func (c *Client) withRetry(ctx context.Context, f func(conn *grpc.ClientConn) error) error {
	conn, err := c.mgr.Acquire(ctx)
	if err != nil {
		return err
	}

	err = f(conn)
	if err == nil {
		return nil
	}

	if !transport.IsReconnectable(err, c.spec.NodePreference == PreferLeader) {
		return err
	}

	c.logger.Warnf("reconnectable error %v, rediscovering", err)
	conn, rerr := c.mgr.Reopen(ctx)
	if rerr != nil {
		return rerr
	}
	return f(conn)
}
