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
	"io"

	"google.golang.org/grpc"

	"github.com/sabouaram/eventstore-client-go/internal/wire"
)

const streamsServiceName = "event_store.client.streams.Streams"

// streamsClient implements wire.StreamsClient over a live *grpc.ClientConn.
type streamsClient struct {
	conn *grpc.ClientConn
}

// NewStreamsClient builds a wire.StreamsClient bound to conn.
func NewStreamsClient(conn *grpc.ClientConn) wire.StreamsClient {
	return &streamsClient{conn: conn}
}

func callOpt() grpc.CallOption { return grpc.CallContentSubtype(wireCodecName) }

func (c *streamsClient) Append(ctx context.Context, frames []wire.AppendRequestFrame) (wire.AppendResponse, error) {
	desc := &grpc.StreamDesc{StreamName: "Append", ClientStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+streamsServiceName+"/Append", callOpt())
	if err != nil {
		return wire.AppendResponse{}, err
	}
	for _, f := range frames {
		if err := stream.SendMsg(f); err != nil {
			return wire.AppendResponse{}, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return wire.AppendResponse{}, err
	}
	var resp wire.AppendResponse
	if err := stream.RecvMsg(&resp); err != nil {
		return wire.AppendResponse{}, err
	}
	return resp, nil
}

func (c *streamsClient) Read(ctx context.Context, req wire.ReadRequest) (wire.ReadStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Read", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+streamsServiceName+"/Read", callOpt())
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &readStream{stream: stream}, nil
}

type readStream struct {
	stream grpc.ClientStream
}

func (r *readStream) Recv() (wire.ReadResponseItem, error) {
	var item wire.ReadResponseItem
	if err := r.stream.RecvMsg(&item); err != nil {
		if err == io.EOF {
			return wire.ReadResponseItem{}, io.EOF
		}
		return wire.ReadResponseItem{}, err
	}
	return item, nil
}

func (r *readStream) Close() error {
	return r.stream.CloseSend()
}

func (c *streamsClient) Delete(ctx context.Context, streamID string, opts wire.AppendOptions) (wire.AppendResponse, error) {
	var resp wire.AppendResponse
	opts.StreamID = streamID
	err := c.conn.Invoke(ctx, "/"+streamsServiceName+"/Delete", opts, &resp, callOpt())
	return resp, err
}

func (c *streamsClient) Tombstone(ctx context.Context, streamID string, opts wire.AppendOptions) (wire.AppendResponse, error) {
	var resp wire.AppendResponse
	opts.StreamID = streamID
	err := c.conn.Invoke(ctx, "/"+streamsServiceName+"/Tombstone", opts, &resp, callOpt())
	return resp, err
}

func (c *streamsClient) GetStreamMetadata(ctx context.Context, streamID string) (wire.StreamMetadataResult, error) {
	req := struct {
		StreamID string `json:"stream_id"`
	}{StreamID: "$$" + streamID}
	var resp struct {
		Metadata map[string]any `json:"metadata"`
		Deleted  bool           `json:"deleted"`
	}
	if err := c.conn.Invoke(ctx, "/"+streamsServiceName+"/Read", req, &resp, callOpt()); err != nil {
		return wire.StreamMetadataResult{}, err
	}
	return wire.StreamMetadataResult{Metadata: resp.Metadata, Deleted: resp.Deleted}, nil
}

func (c *streamsClient) SetStreamMetadata(ctx context.Context, streamID string, metadata map[string]any, opts wire.AppendOptions) (wire.AppendResponse, error) {
	req := struct {
		StreamID string         `json:"stream_id"`
		Metadata map[string]any `json:"metadata"`
		Options  wire.AppendOptions `json:"options"`
	}{StreamID: "$$" + streamID, Metadata: metadata, Options: opts}
	var resp wire.AppendResponse
	err := c.conn.Invoke(ctx, "/"+streamsServiceName+"/Append", req, &resp, callOpt())
	return resp, err
}

func (c *streamsClient) Subscribe(ctx context.Context, req wire.SubscribeRequest) (wire.SubscribeStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Read", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+streamsServiceName+"/Read", callOpt())
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &subscribeStream{stream: stream}, nil
}

type subscribeStream struct {
	stream grpc.ClientStream
}

func (s *subscribeStream) Recv() (wire.SubscribeResponseItem, error) {
	var item wire.SubscribeResponseItem
	if err := s.stream.RecvMsg(&item); err != nil {
		return wire.SubscribeResponseItem{}, err
	}
	return item, nil
}

func (s *subscribeStream) Close() error {
	return s.stream.CloseSend()
}
