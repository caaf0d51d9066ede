package connection

import (
	"net/url"
	"strconv"
	"strings"
)

// Parse resolves a connection URI into a Config.
//
// Accepted forms are scheme://[user[:secret]@]host[:port]/collection?query for
// http and https, and file://path/collection?query for local stores. Fields the
// URI leaves unset take their value from the Defaults option.
func Parse(uri string, opts ...Option) (*Config, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, &ParseError{Field: "uri", Value: uri, Err: err}
	}

	cfg := &Config{Scheme: strings.ToLower(u.Scheme)}
	switch cfg.Scheme {
	case "file":
		cfg.IsLocal = true
		cfg.Path, cfg.Collection = splitLocal(u.Host, u.Path)
		if cfg.Path == "" {
			cfg.Path = "."
		}
	case "http", "https":
		if u.Hostname() == "" {
			return nil, &ParseError{Field: "host", Value: uri, Err: ErrMissingHost}
		}
		cfg.Host = u.Hostname()
		cfg.Port = DefaultPort
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, &ParseError{Field: "port", Value: p, Err: err}
			}
			cfg.Port = port
		}
		cfg.Collection = lastSegment(u.Path)
	default:
		return nil, &UnsupportedSchemeError{Scheme: u.Scheme}
	}

	if err := applyQuery(cfg, u.Query(), o.defaults); err != nil {
		return nil, err
	}

	var uriAuth Auth
	if u.User != nil && !cfg.IsLocal {
		pass, _ := u.User.Password()
		uriAuth = authFromUserInfo(u.User.Username(), pass)
	}
	cfg.Auth = resolveAuth(o.explicit, uriAuth, o.lookupEnv)

	if cfg.Collection == "" {
		return nil, &ParseError{Field: "collection", Value: uri, Err: ErrMissingCollection}
	}
	return cfg, nil
}

func applyQuery(cfg *Config, q url.Values, d Defaults) error {
	var err error

	cfg.Collection = firstNonEmpty(cfg.Collection, d.Collection)
	cfg.Tenant = firstNonEmpty(q.Get("tenant"), d.Tenant)
	cfg.Database = firstNonEmpty(q.Get("database"), d.Database)

	if cfg.BatchSize, err = intParam(q, "batch_size", d.BatchSize); err != nil {
		return err
	}
	if cfg.Limit, err = intParam(q, "limit", d.Limit); err != nil {
		return err
	}
	if cfg.Offset, err = intParam(q, "offset", d.Offset); err != nil {
		return err
	}
	if cfg.CreateCollection, err = boolParam(q, "create_collection", d.CreateCollection); err != nil {
		return err
	}
	if cfg.Upsert, err = boolParam(q, "upsert", d.Upsert); err != nil {
		return err
	}

	cfg.Distance = d.Distance
	if v := q.Get("df"); v != "" {
		if cfg.Distance, err = ParseDistance(v); err != nil {
			return &ParseError{Field: "df", Value: v, Err: err}
		}
	}

	cfg.Engine = d.Engine
	if v := q.Get("engine"); v != "" {
		if cfg.Engine, err = ParseEngine(v); err != nil {
			return &ParseError{Field: "engine", Value: v, Err: err}
		}
	}

	if q.Has("batch_size") && cfg.BatchSize <= 0 {
		return &ParseError{Field: "batch_size", Value: strconv.Itoa(cfg.BatchSize), Err: ErrNonPositive}
	}
	return nil
}

// splitLocal separates the storage root from the collection for file URIs.
func splitLocal(host, path string) (root, collection string) {
	full := host + path
	idx := strings.LastIndex(full, "/")
	if idx < 0 {
		return "", full
	}
	root = full[:idx]
	if root == "" && strings.HasPrefix(full, "/") {
		root = "/"
	}
	return root, full[idx+1:]
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func intParam(q url.Values, name string, fallback int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ParseError{Field: name, Value: v, Err: err}
	}
	return n, nil
}

func boolParam(q url.Values, name string, fallback bool) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ParseError{Field: name, Value: v, Err: err}
	}
	return b, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
