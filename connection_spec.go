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
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/eventstore-client-go/eserr"
)

// Scheme is the connection-string scheme (§4.1).
type Scheme uint8

const (
	SchemeDirect Scheme = iota
	SchemeDiscover
)

// Seed is one host:port entry from the connection string's authority.
type Seed struct {
	Host string
	Port int
}

func (s Seed) String() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Credentials is optional basic-auth carried in the connection string's
// userinfo component.
type Credentials struct {
	Username string
	Password string
}

// ConnectionSpec is the frozen result of parsing a connection string. Every
// field has already been validated and defaulted; constructing one by hand
// (rather than through ParseConnectionSpec) is only for tests.
type ConnectionSpec struct {
	Scheme      Scheme
	Seeds       []Seed
	Credentials *Credentials
	Tls         bool

	TlsVerifyCert       bool
	ConnectionName      string
	MaxDiscoverAttempts int
	DiscoveryInterval   time.Duration
	GossipTimeout       time.Duration
	NodePreference      NodePreference
	DefaultDeadline     time.Duration
	KeepAliveInterval   time.Duration
	HasKeepAliveInterval bool
	KeepAliveTimeout    time.Duration
	HasKeepAliveTimeout bool
}

// defaults mirror §3/§4.1: secure by default, leader preference, a
// generous discovery budget.
func defaultSpec() ConnectionSpec {
	return ConnectionSpec{
		Tls:                 true,
		TlsVerifyCert:       true,
		MaxDiscoverAttempts: 10,
		DiscoveryInterval:   100 * time.Millisecond,
		GossipTimeout:       5 * time.Second,
		NodePreference:      PreferLeader,
		DefaultDeadline:     10 * time.Second,
	}
}

// recognizedOptions is the allow-list for the OPTIONS map (§4.1): unknown
// keys fail construction. Matching is case-insensitive; the map key here
// is the canonical lower-case form.
var recognizedOptions = map[string]struct{}{
	"tls":                 {},
	"tlsverifycert":       {},
	"connectionname":      {},
	"maxdiscoverattempts": {},
	"discoveryinterval":   {},
	"gossiptimeout":       {},
	"nodepreference":      {},
	"defaultdeadline":     {},
	"keepaliveinterval":   {},
	"keepalivetimeout":    {},
}

// ParseConnectionSpec parses a connection string of the form
// "esdb://[user:pass@]host:port[,host:port,...][?Opt=Val&...]" or
// "esdb+discover://host[:port][?Opt=Val&...]" into a frozen ConnectionSpec.
func ParseConnectionSpec(connectionString string) (ConnectionSpec, error) {
	scheme, rest, err := splitScheme(connectionString)
	if err != nil {
		return ConnectionSpec{}, err
	}

	// url.Parse rejects a comma-separated seed list whose last seed has no
	// port ("invalid port"), so the host list is cut out of the authority
	// here and url.Parse only sees the userinfo, a placeholder host and the
	// query.
	authority := rest
	if i := strings.IndexAny(authority, "/?"); i >= 0 {
		authority = authority[:i]
	}
	hosts := authority
	if at := strings.LastIndex(hosts, "@"); at >= 0 {
		hosts = hosts[at+1:]
	}
	userinfo := strings.TrimSuffix(authority, hosts)
	u, err := url.Parse(scheme + "://" + userinfo + "seeds" + rest[len(authority):])
	if err != nil {
		return ConnectionSpec{}, eserr.Newf(eserr.CodeConfigurationError, err, "invalid connection string")
	}

	spec := defaultSpec()

	switch scheme {
	case "esdb":
		spec.Scheme = SchemeDirect
	case "esdb+discover":
		spec.Scheme = SchemeDiscover
	default:
		return ConnectionSpec{}, eserr.ConfigurationError(fmt.Sprintf("unrecognized scheme %q", scheme))
	}

	if u.User != nil {
		pass, _ := u.User.Password()
		spec.Credentials = &Credentials{Username: u.User.Username(), Password: pass}
	}

	seeds, err := parseSeeds(hosts, spec.Scheme)
	if err != nil {
		return ConnectionSpec{}, err
	}
	spec.Seeds = seeds

	if err := applyOptions(&spec, u.RawQuery); err != nil {
		return ConnectionSpec{}, err
	}

	return spec, nil
}

func splitScheme(s string) (scheme, rest string, err error) {
	idx := strings.Index(s, "://")
	if idx < 0 {
		return "", "", eserr.ConfigurationError("missing scheme")
	}
	return s[:idx], s[idx+3:], nil
}

func parseSeeds(authority string, scheme Scheme) ([]Seed, error) {
	if authority == "" {
		return nil, eserr.ConfigurationError("missing host in connection string")
	}

	var seeds []Seed
	for _, hp := range strings.Split(authority, ",") {
		host, portStr, err := splitHostPort(hp)
		if err != nil {
			return nil, err
		}
		port := 2113
		if portStr != "" {
			p, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, eserr.Newf(eserr.CodeConfigurationError, err, "invalid port in %q", hp)
			}
			port = p
		}
		seeds = append(seeds, Seed{Host: host, Port: port})
	}

	if scheme == SchemeDiscover && len(seeds) != 1 {
		return nil, eserr.ConfigurationError("discover scheme requires exactly one DNS-resolvable host")
	}
	if scheme == SchemeDirect && len(seeds) < 1 {
		return nil, eserr.ConfigurationError("direct scheme requires at least one seed")
	}

	return seeds, nil
}

func splitHostPort(hp string) (host, port string, err error) {
	i := strings.LastIndex(hp, ":")
	if i < 0 {
		return hp, "", nil
	}
	return hp[:i], hp[i+1:], nil
}

// applyOptions parses the query string into spec, honoring first-value-wins
// on repeated keys and failing on unknown keys.
func applyOptions(spec *ConnectionSpec, rawQuery string) error {
	if rawQuery == "" {
		return nil
	}

	seen := make(map[string]string)
	var order []string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := kv[0]
		val := ""
		if len(kv) == 2 {
			val = kv[1]
		}
		if decoded, err := url.QueryUnescape(val); err == nil {
			val = decoded
		}
		lower := strings.ToLower(key)
		if _, ok := recognizedOptions[lower]; !ok {
			return eserr.ConfigurationError(fmt.Sprintf("Unknown field(s): %s", key))
		}
		if _, dup := seen[lower]; dup {
			continue // first occurrence wins
		}
		seen[lower] = val
		order = append(order, lower)
	}
	sort.Strings(order) // deterministic application order; value already fixed by first-wins

	for _, key := range order {
		val := seen[key]
		var err error
		switch key {
		case "tls":
			spec.Tls, err = parseBool(val)
		case "tlsverifycert":
			spec.TlsVerifyCert, err = parseBool(val)
		case "connectionname":
			spec.ConnectionName = val
		case "maxdiscoverattempts":
			spec.MaxDiscoverAttempts, err = parseInt(val)
		case "discoveryinterval":
			spec.DiscoveryInterval, err = parseDurationMs(val)
		case "gossiptimeout":
			spec.GossipTimeout, err = parseDurationSeconds(val)
		case "nodepreference":
			spec.NodePreference, err = parseNodePreference(val)
		case "defaultdeadline":
			spec.DefaultDeadline, err = parseDurationSeconds(val)
		case "keepaliveinterval":
			spec.KeepAliveInterval, err = parseDurationMs(val)
			spec.HasKeepAliveInterval = err == nil
		case "keepalivetimeout":
			spec.KeepAliveTimeout, err = parseDurationMs(val)
			spec.HasKeepAliveTimeout = err == nil
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, eserr.ConfigurationError(fmt.Sprintf("invalid boolean option value %q", v))
	}
}

func parseInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eserr.Newf(eserr.CodeConfigurationError, err, "invalid integer option value %q", v)
	}
	return n, nil
}

func parseDurationMs(v string) (time.Duration, error) {
	n, err := parseInt(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parseDurationSeconds(v string) (time.Duration, error) {
	n, err := parseInt(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parseNodePreference(v string) (NodePreference, error) {
	switch strings.ToLower(v) {
	case "leader":
		return PreferLeader, nil
	case "follower":
		return PreferFollower, nil
	case "readonlyreplica":
		return PreferReadOnlyReplica, nil
	case "random":
		return PreferRandom, nil
	default:
		return 0, eserr.ConfigurationError(fmt.Sprintf("invalid NodePreference value %q", v))
	}
}

// String renders spec back into its canonical connection-string form.
// Parsing String() is required to round-trip to an equivalent spec (§8).
func (s ConnectionSpec) String() string {
	var b strings.Builder

	switch s.Scheme {
	case SchemeDiscover:
		b.WriteString("esdb+discover://")
	default:
		b.WriteString("esdb://")
	}

	if s.Credentials != nil {
		b.WriteString(url.QueryEscape(s.Credentials.Username))
		b.WriteString(":")
		b.WriteString(url.QueryEscape(s.Credentials.Password))
		b.WriteString("@")
	}

	for i, seed := range s.Seeds {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(seed.String())
	}

	opts := url.Values{}
	opts.Set("Tls", strconv.FormatBool(s.Tls))
	opts.Set("TlsVerifyCert", strconv.FormatBool(s.TlsVerifyCert))
	if s.ConnectionName != "" {
		opts.Set("ConnectionName", s.ConnectionName)
	}
	opts.Set("MaxDiscoverAttempts", strconv.Itoa(s.MaxDiscoverAttempts))
	opts.Set("DiscoveryInterval", strconv.FormatInt(s.DiscoveryInterval.Milliseconds(), 10))
	opts.Set("GossipTimeout", strconv.FormatInt(int64(s.GossipTimeout/time.Second), 10))
	opts.Set("NodePreference", s.NodePreference.String())
	opts.Set("DefaultDeadline", strconv.FormatInt(int64(s.DefaultDeadline/time.Second), 10))
	if s.HasKeepAliveInterval {
		opts.Set("KeepAliveInterval", strconv.FormatInt(s.KeepAliveInterval.Milliseconds(), 10))
	}
	if s.HasKeepAliveTimeout {
		opts.Set("KeepAliveTimeout", strconv.FormatInt(s.KeepAliveTimeout.Milliseconds(), 10))
	}

	b.WriteString("?")
	b.WriteString(opts.Encode())

	return b.String()
}
