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

package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

const gossipServiceName = "event_store.client.gossip.Gossip"

type gossipClient struct {
	conn *grpc.ClientConn
}

// NewGossipClient builds a wire.GossipClient bound to conn.
func NewGossipClient(conn *grpc.ClientConn) wire.GossipClient {
	return &gossipClient{conn: conn}
}

func (c *gossipClient) Read(ctx context.Context) (wire.GossipResponse, error) {
	var resp wire.GossipResponse
	err := c.conn.Invoke(ctx, "/"+gossipServiceName+"/Read", struct{}{}, &resp, callOpt())
	return resp, err
}

// DialSeed opens a short-lived channel to a single gossip seed using the
// same dial options production calls use (§4.3: "a short-deadline
// channel").
func DialSeed(ctx context.Context, target string, tlsCfg TLSConfig) (*grpc.ClientConn, error) {
	opts, err := DialOptions(tlsCfg, 0, 0, false)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, target, opts...)
}
