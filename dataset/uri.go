package dataset

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// Schemes.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Defaults applied by ParseURI.
const (
	DefaultSplit     = "train"
	DefaultBatchSize = 100
)

// DefaultFeatureMap names the columns of rows written by Export.
func DefaultFeatureMap() core.FeatureMap {
	return core.FeatureMap{
		DocFeature:   "document",
		EmbedFeature: "embedding",
		IDFeature:    "id",
	}
}

// URI is a parsed dataset location plus its read and write settings.
type URI struct {
	Scheme string
	// Root is the hub directory for file URIs.
	Root string
	// Bucket and Prefix locate the hub for s3 URIs. Prefix is empty or ends with '/'.
	Bucket string
	Prefix string
	Name   string

	Split     string
	Limit     int
	Offset    int
	BatchSize int
	Private   bool

	// Features holds the feature names given in the query. Empty fields
	// are filled by FeatureMap.
	Features core.FeatureMap

	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// ParseURI parses file://<dir>/<name> and s3://<bucket>/<prefix>/<name>.
// Query keys: split, limit, offset, batch_size, doc_feature, embed_feature,
// id_feature, meta_features (comma separated), private, endpoint, region.
func ParseURI(raw string) (*URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	out := &URI{Scheme: u.Scheme, Split: DefaultSplit, Limit: -1, BatchSize: DefaultBatchSize}

	switch u.Scheme {
	case SchemeFile:
		full := u.Host + u.Path
		out.Root, out.Name = path.Dir(full), path.Base(full)
	case SchemeS3:
		if u.Host == "" {
			return nil, fmt.Errorf("%w: missing bucket", ErrInvalidURI)
		}
		out.Bucket = u.Host
		key := strings.Trim(u.Path, "/")
		if i := strings.LastIndex(key, "/"); i >= 0 {
			out.Prefix, out.Name = key[:i+1], key[i+1:]
		} else {
			out.Name = key
		}
		if u.User != nil {
			out.AccessKey = u.User.Username()
			out.SecretKey, _ = u.User.Password()
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if out.Name == "" || out.Name == "." || out.Name == "/" {
		return nil, fmt.Errorf("%w: missing dataset name", ErrInvalidURI)
	}

	q := u.Query()
	if v := q.Get("split"); v != "" {
		out.Split = v
	}
	if out.Limit, err = intParam(q, "limit", out.Limit); err != nil {
		return nil, err
	}
	if out.Offset, err = intParam(q, "offset", out.Offset); err != nil {
		return nil, err
	}
	if out.BatchSize, err = intParam(q, "batch_size", out.BatchSize); err != nil {
		return nil, err
	}
	if out.Offset < 0 || out.BatchSize < 1 {
		return nil, fmt.Errorf("%w: offset must be >= 0 and batch_size > 0", ErrInvalidURI)
	}
	if v := q.Get("private"); v != "" {
		if out.Private, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: private=%q", ErrInvalidURI, v)
		}
	}
	out.Features = core.FeatureMap{
		DocFeature:   q.Get("doc_feature"),
		EmbedFeature: q.Get("embed_feature"),
		IDFeature:    q.Get("id_feature"),
	}
	if v := q.Get("meta_features"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out.Features.MetaFeatures = append(out.Features.MetaFeatures, f)
			}
		}
	}
	out.Endpoint = q.Get("endpoint")
	out.Region = q.Get("region")
	return out, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
	}
	return n, nil
}

// FeatureMap returns the URI features with empty entries taken from
// fallback.
func (u *URI) FeatureMap(fallback core.FeatureMap) core.FeatureMap {
	fm := u.Features
	if fm.DocFeature == "" {
		fm.DocFeature = fallback.DocFeature
	}
	if fm.EmbedFeature == "" {
		fm.EmbedFeature = fallback.EmbedFeature
	}
	if fm.IDFeature == "" {
		fm.IDFeature = fallback.IDFeature
	}
	if len(fm.MetaFeatures) == 0 {
		fm.MetaFeatures = fallback.MetaFeatures
	}
	return fm
}

// ObjectKey is the location of a split relative to the hub root.
func ObjectKey(name, split string) string {
	return name + "/" + split + ".jsonl"
}

// String renders the URI without credentials.
func (u *URI) String() string {
	if u.Scheme == SchemeS3 {
		return fmt.Sprintf("s3://%s/%s%s?split=%s", u.Bucket, u.Prefix, u.Name, u.Split)
	}
	return fmt.Sprintf("file://%s?split=%s", path.Join(u.Root, u.Name), u.Split)
}
