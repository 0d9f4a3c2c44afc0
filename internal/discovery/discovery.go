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

// Package discovery implements the gossip/discovery engine of spec §4.3:
// turning a seed list into a live node matching a caller's preference. Each
// attempt round fans the gossip read out across every seed concurrently
// (via errgroup) rather than probing them one at a time, so a single slow
// or unreachable seed doesn't stall the others.
package discovery

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

// Preference mirrors esdb.NodePreference without importing the root
// package (which imports this one), keeping the dependency graph acyclic.
type Preference uint8

const (
	PreferLeader Preference = iota
	PreferFollower
	PreferReadOnlyReplica
	PreferRandom
)

// Seed is one gossip seed (host:port).
type Seed struct {
	Host string
	Port int
}

// GossipReader opens a short-deadline channel to seed and invokes the
// gossip read RPC. Implemented by internal/transport against the real
// gossip stub; swappable in tests.
type GossipReader func(ctx context.Context, seed Seed) (wire.GossipResponse, error)

// Options configures one discovery pass (§4.3).
type Options struct {
	MaxAttempts       int
	DiscoveryInterval time.Duration
	GossipTimeout     time.Duration
	Preference        Preference
	// Rand, when non-nil, is used for shuffling/tie-breaking; tests
	// inject a seeded source for determinism.
	Rand *rand.Rand
}

// Result is the selected member plus the address used to reach it —
// kept separate from esdb.ClusterMember so this package has no
// dependency on the root package.
type Result struct {
	Member  wire.GossipMember
	ViaSeed Seed
}

// Discover runs the algorithm of spec §4.3 against the given seed list.
func Discover(ctx context.Context, seeds []Seed, read GossipReader, opts Options) (Result, error) {
	if len(seeds) == 0 {
		return Result{}, eserr.ConfigurationError("no gossip seeds configured")
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ordered := make([]Seed, len(seeds))
	copy(ordered, seeds)
	if opts.Preference == PreferRandom {
		rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastSeed Seed
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		outcomes := probeSeeds(ctx, ordered, read, opts.GossipTimeout)

		for _, o := range outcomes {
			lastSeed = o.seed

			if o.err != nil {
				lastErr = eserr.GossipSeedError(o.seed.Host, o.seed.Port, o.err)
				continue
			}

			matches := filterByPreference(o.resp.Members, opts.Preference)
			if len(matches) == 0 {
				switch opts.Preference {
				case PreferFollower:
					return Result{}, eserr.FollowerNotFound()
				case PreferReadOnlyReplica:
					return Result{}, eserr.ReadOnlyReplicaNotFound()
				default:
					continue // leader/random: keep trying other seeds / attempts
				}
			}

			chosen := matches[rng.Intn(len(matches))]
			return Result{Member: chosen, ViaSeed: o.seed}, nil
		}

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(opts.DiscoveryInterval):
		}
	}

	return Result{}, eserr.DiscoveryFailed(lastSeed.Host, lastSeed.Port, lastErr)
}

// seedOutcome is one seed's gossip read result, collected by probeSeeds.
type seedOutcome struct {
	seed Seed
	resp wire.GossipResponse
	err  error
}

// probeSeeds reads every seed concurrently via an errgroup and returns
// their outcomes in seed order, so the caller's seed-preference selection
// logic is unchanged by running the reads in parallel. Each seed gets its
// own timeout derived from ctx; a slow seed never delays the others, and
// the group's own function never fails (each seed's error is captured in
// its outcome instead), so g.Wait() only ever blocks until every read has
// finished or timed out.
func probeSeeds(ctx context.Context, seeds []Seed, read GossipReader, timeout time.Duration) []seedOutcome {
	outcomes := make([]seedOutcome, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			gossipCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			resp, err := read(gossipCtx, seed)
			outcomes[i] = seedOutcome{seed: seed, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func filterByPreference(members []wire.GossipMember, pref Preference) []wire.GossipMember {
	var out []wire.GossipMember
	for _, m := range members {
		if !m.IsAlive {
			continue
		}
		switch pref {
		case PreferLeader:
			if m.State == "Leader" {
				out = append(out, m)
			}
		case PreferFollower:
			if m.State == "Follower" {
				out = append(out, m)
			}
		case PreferReadOnlyReplica:
			if m.State == "ReadOnlyReplica" {
				out = append(out, m)
			}
		case PreferRandom:
			out = append(out, m)
		}
	}
	return out
}
