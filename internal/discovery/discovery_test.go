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

package discovery_test

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sabouaram/eventstore-client-go/eserr"
	"github.com/sabouaram/eventstore-client-go/internal/discovery"
	"github.com/sabouaram/eventstore-client-go/internal/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func seeds(n int) []discovery.Seed {
	out := make([]discovery.Seed, n)
	for i := range out {
		out[i] = discovery.Seed{Host: "node", Port: 2113 + i}
	}
	return out
}

func baseOpts(pref discovery.Preference) discovery.Options {
	return discovery.Options{
		MaxAttempts:       1,
		DiscoveryInterval: time.Millisecond,
		GossipTimeout:     50 * time.Millisecond,
		Preference:        pref,
		Rand:              rand.New(rand.NewSource(1)),
	}
}

var _ = Describe("Discover", func() {

	It("rejects an empty seed list as a configuration error", func() {
		_, err := discovery.Discover(context.Background(), nil, nil, baseOpts(discovery.PreferLeader))
		Expect(eserr.HasCode(err, eserr.CodeConfigurationError)).To(BeTrue())
	})

	It("selects the leader when one is present", func() {
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{Members: []wire.GossipMember{
				{State: "Follower", IsAlive: true},
				{State: "Leader", IsAlive: true},
			}}, nil
		}
		res, err := discovery.Discover(context.Background(), seeds(1), read, baseOpts(discovery.PreferLeader))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Member.State).To(Equal("Leader"))
	})

	It("skips a dead node with a matching state", func() {
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{Members: []wire.GossipMember{
				{State: "Leader", IsAlive: false},
			}}, nil
		}
		opts := baseOpts(discovery.PreferLeader)
		opts.MaxAttempts = 1
		_, err := discovery.Discover(context.Background(), seeds(1), read, opts)
		Expect(eserr.HasCode(err, eserr.CodeDiscoveryFailed)).To(BeTrue())
	})

	It("short-circuits with FollowerNotFound when no follower is alive", func() {
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{Members: []wire.GossipMember{
				{State: "Leader", IsAlive: true},
			}}, nil
		}
		_, err := discovery.Discover(context.Background(), seeds(1), read, baseOpts(discovery.PreferFollower))
		Expect(eserr.HasCode(err, eserr.CodeFollowerNotFound)).To(BeTrue())
	})

	It("short-circuits with ReadOnlyReplicaNotFound when none is alive", func() {
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{Members: []wire.GossipMember{
				{State: "Leader", IsAlive: true},
			}}, nil
		}
		_, err := discovery.Discover(context.Background(), seeds(1), read, baseOpts(discovery.PreferReadOnlyReplica))
		Expect(eserr.HasCode(err, eserr.CodeReadOnlyReplicaNotFound)).To(BeTrue())
	})

	It("tries the next seed when one fails, and succeeds on a later one", func() {
		calls := 0
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			calls++
			if s.Port == 2113 {
				return wire.GossipResponse{}, errors.New("connection refused")
			}
			return wire.GossipResponse{Members: []wire.GossipMember{
				{State: "Leader", IsAlive: true},
			}}, nil
		}
		res, err := discovery.Discover(context.Background(), seeds(2), read, baseOpts(discovery.PreferLeader))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.ViaSeed.Port).To(Equal(2114))
		Expect(calls).To(Equal(2))
	})

	It("exhausts all seeds and attempts, returning DiscoveryFailed", func() {
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{}, errors.New("unreachable")
		}
		opts := baseOpts(discovery.PreferLeader)
		opts.MaxAttempts = 2
		_, err := discovery.Discover(context.Background(), seeds(2), read, opts)
		Expect(eserr.HasCode(err, eserr.CodeDiscoveryFailed)).To(BeTrue())
	})

	It("honors context cancellation between attempts", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		read := func(ctx context.Context, s discovery.Seed) (wire.GossipResponse, error) {
			return wire.GossipResponse{}, errors.New("unreachable")
		}
		opts := baseOpts(discovery.PreferLeader)
		opts.MaxAttempts = 3
		_, err := discovery.Discover(ctx, seeds(1), read, opts)
		Expect(err).To(HaveOccurred())
	})
})
