// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"fmt"
	"net"
	"strconv"
)

// Distance is the similarity metric a new vector collection is created with.
type Distance string

const (
	DistanceL2     Distance = "l2"
	DistanceIP     Distance = "ip"
	DistanceCosine Distance = "cosine"
)

// ParseDistance validates a distance token.
func ParseDistance(s string) (Distance, error) {
	switch Distance(s) {
	case DistanceL2, DistanceIP, DistanceCosine:
		return Distance(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDistance, s)
}

// Engine selects the embedded store used for local locations.
type Engine string

const (
	EngineBadger Engine = "badger"
	EngineSQLite Engine = "sqlite"
)

// ParseEngine validates an engine token.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineBadger, EngineSQLite:
		return Engine(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
}

// DefaultPort is used for remote locations that omit a port.
const DefaultPort = 8000

// Config is the resolved description of a store location. It is built once
// by Parse and not modified afterwards.
type Config struct {
	Scheme string

	// IsLocal is true for file:// locations. Path is then the storage root;
	// otherwise Host and Port address the remote store.
	IsLocal bool
	Path    string
	Host    string
	Port    int

	Collection string
	Tenant     string
	Database   string
	Auth       Auth

	BatchSize        int
	Limit            int
	Offset           int
	CreateCollection bool
	Upsert           bool
	Distance         Distance
	Engine           Engine
}

// Defaults holds the values applied to fields a URI leaves unset.
// Typically these come from command line flags. Without them Parse leaves
// those fields at their zero values.
type Defaults struct {
	Collection       string
	Tenant           string
	Database         string
	BatchSize        int
	Limit            int
	Offset           int
	CreateCollection bool
	Upsert           bool
	Distance         Distance
	Engine           Engine
}

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	defaults  Defaults
	explicit  *Auth
	lookupEnv func(string) (string, bool)
}

// WithDefaults replaces the fallback values.
func WithDefaults(d Defaults) Option {
	return func(o *parseOptions) {
		o.defaults = d
	}
}

// WithAuth sets credentials that take precedence over the URI and environment.
func WithAuth(a Auth) Option {
	return func(o *parseOptions) {
		if a.IsSet() {
			o.explicit = &a
		}
	}
}

// WithEnv enables environment credentials as the last fallback.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(o *parseOptions) {
		o.lookupEnv = lookup
	}
}

// BaseURL returns the http(s) address of a remote store.
func (c *Config) BaseURL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Location returns the storage root or the remote address.
func (c *Config) Location() string {
	if c.IsLocal {
		return c.Path
	}
	return c.BaseURL()
}

// String renders the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("%s collection=%s auth=%s batch_size=%d limit=%d offset=%d",
		c.Location(), c.Collection, c.Auth, c.BatchSize, c.Limit, c.Offset)
}
