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
	"sync"

	"google.golang.org/grpc"
)

// Dialer resolves a live node matching the caller's preference and returns
// a ready *grpc.ClientConn to it. The discovery engine implements this;
// Manager only knows how to call it and cache the result.
type Dialer func(ctx context.Context) (*grpc.ClientConn, error)

// Manager holds at most one active channel at a time (§4.4). Reopen is
// serialized: concurrent callers observing a dead channel share a single
// in-flight discovery pass rather than each re-running it.
type Manager struct {
	dial Dialer

	mu      sync.Mutex
	conn    *grpc.ClientConn
	inFlight *reopenCall
}

type reopenCall struct {
	done chan struct{}
	conn *grpc.ClientConn
	err  error
}

// NewManager builds a Manager around the given Dialer. No channel is
// opened until the first Acquire.
func NewManager(dial Dialer) *Manager {
	return &Manager{dial: dial}
}

// Acquire returns the current channel, dialing one if none is open yet.
func (m *Manager) Acquire(ctx context.Context) (*grpc.ClientConn, error) {
	m.mu.Lock()
	if m.conn != nil {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	m.mu.Unlock()
	return m.Reopen(ctx)
}

// Reopen discards the current channel (if any) and dials a fresh one via
// the Dialer. Concurrent Reopen calls collapse into a single discovery
// pass: the first caller dials, the rest wait on the same result.
func (m *Manager) Reopen(ctx context.Context) (*grpc.ClientConn, error) {
	m.mu.Lock()
	if m.inFlight != nil {
		call := m.inFlight
		m.mu.Unlock()
		<-call.done
		return call.conn, call.err
	}

	call := &reopenCall{done: make(chan struct{})}
	m.inFlight = call
	old := m.conn
	m.conn = nil
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	conn, err := m.dial(ctx)

	m.mu.Lock()
	call.conn, call.err = conn, err
	if err == nil {
		m.conn = conn
	}
	m.inFlight = nil
	m.mu.Unlock()

	close(call.done)
	return conn, err
}

// Close tears down the active channel, if any. Safe to call more than
// once.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
