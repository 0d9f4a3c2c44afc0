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
	"crypto/tls"
	"crypto/x509"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/sabouaram/eventstore-client-go/eserr"
)

// MaxReceiveMessageLength is the channel cap required by §6: 17 MiB.
const MaxReceiveMessageLength = 17 * 1024 * 1024

// TLSConfig carries only what §1/§4.1 say the client owns: whether to use
// TLS, whether to verify the peer, and opaque trust-anchor bytes. Loading
// those bytes from disk/secret-store is the caller's job.
type TLSConfig struct {
	Enabled       bool
	VerifyPeer    bool
	RootCAsPEM    []byte // nil uses the system trust store
}

// BuildTLSConfig assembles a *tls.Config from opaque PEM bytes and flags.
// It never reads from disk: RootCAsPEM, if non-nil, must already be loaded
// by the caller (TLS certificate loading is an external collaborator,
// §1).
func BuildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: !cfg.VerifyPeer,
	}

	if len(cfg.RootCAsPEM) > 0 {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(cfg.RootCAsPEM); !ok {
			return nil, eserr.ConfigurationError("no certificates found in supplied root CA PEM bytes")
		}
		tc.RootCAs = pool
	}
	// A nil RootCAs pool makes crypto/tls fall back to the system trust
	// store; a handshake failure there surfaces as a TLS error on first
	// call, per §4.1, via Translate's SSL_ERROR/empty-address-list paths.

	return tc, nil
}

// DialOptions builds the grpc.DialOption set required by §6: message size
// cap, keepalive (only when the caller supplied it — omitting it entirely
// must NOT translate into a zero-value "ping constantly" keepalive, per
// SPEC_FULL §C.3), and transport credentials.
func DialOptions(tlsCfg TLSConfig, keepaliveInterval, keepaliveTimeout time.Duration, hasKeepalive bool) ([]grpc.DialOption, error) {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(MaxReceiveMessageLength)),
	}

	if tlsCfg.Enabled {
		tc, err := BuildTLSConfig(tlsCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tc)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if hasKeepalive {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    keepaliveInterval,
			Timeout: keepaliveTimeout,
		}))
	}

	return opts, nil
}
