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

const persistentSubscriptionsServiceName = "event_store.client.persistent_subscriptions.PersistentSubscriptions"

type persistentClient struct {
	conn *grpc.ClientConn
}

// NewPersistentSubscriptionsClient builds a wire.PersistentSubscriptionsClient
// bound to conn.
func NewPersistentSubscriptionsClient(conn *grpc.ClientConn) wire.PersistentSubscriptionsClient {
	return &persistentClient{conn: conn}
}

func (c *persistentClient) Create(ctx context.Context, settings wire.PersistentSubscriptionSettings) error {
	var resp struct{}
	return c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/Create", settings, &resp, callOpt())
}

func (c *persistentClient) Update(ctx context.Context, settings wire.PersistentSubscriptionSettings) error {
	var resp struct{}
	return c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/Update", settings, &resp, callOpt())
}

func (c *persistentClient) Get(ctx context.Context, group, source string) (wire.PersistentSubscriptionSettings, error) {
	req := struct {
		GroupName   string `json:"group_name"`
		EventSource string `json:"event_source"`
	}{group, source}
	var resp wire.PersistentSubscriptionSettings
	err := c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/GetInfo", req, &resp, callOpt())
	return resp, err
}

func (c *persistentClient) List(ctx context.Context) ([]wire.PersistentSubscriptionSettings, error) {
	var resp struct {
		Subscriptions []wire.PersistentSubscriptionSettings `json:"subscriptions"`
	}
	err := c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/List", struct{}{}, &resp, callOpt())
	return resp.Subscriptions, err
}

func (c *persistentClient) Delete(ctx context.Context, group, source string) error {
	req := struct {
		GroupName   string `json:"group_name"`
		EventSource string `json:"event_source"`
	}{group, source}
	var resp struct{}
	return c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/Delete", req, &resp, callOpt())
}

func (c *persistentClient) ReplayParkedEvents(ctx context.Context, group, source string) error {
	req := struct {
		GroupName   string `json:"group_name"`
		EventSource string `json:"event_source"`
	}{group, source}
	var resp struct{}
	return c.conn.Invoke(ctx, "/"+persistentSubscriptionsServiceName+"/ReplayParked", req, &resp, callOpt())
}

func (c *persistentClient) Read(ctx context.Context, opts wire.PersistentReadOptions) (wire.PersistentReadStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Read", ClientStreams: true, ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+persistentSubscriptionsServiceName+"/Read", callOpt())
	if err != nil {
		return nil, err
	}
	first := wire.PersistentReadRequestFrame{Options: &opts}
	if err := stream.SendMsg(first); err != nil {
		return nil, err
	}
	return &persistentReadStream{stream: stream}, nil
}

type persistentReadStream struct {
	stream grpc.ClientStream
}

func (p *persistentReadStream) Recv() (wire.PersistentReadResponseItem, error) {
	var item wire.PersistentReadResponseItem
	if err := p.stream.RecvMsg(&item); err != nil {
		return wire.PersistentReadResponseItem{}, err
	}
	return item, nil
}

func (p *persistentReadStream) Send(frame wire.PersistentReadRequestFrame) error {
	return p.stream.SendMsg(frame)
}

func (p *persistentReadStream) Close() error {
	return p.stream.CloseSend()
}
