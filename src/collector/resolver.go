package collector

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	resty "github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/config"
	"github.com/zvdy/clustermeta/src/models"
)

// Configuration keys read from a JobHistory server
const (
	DefaultFSKey                    = "fs.defaultFS"
	RemoteAppLogDirKey              = "yarn.nodemanager.remote-app-log-dir"
	MapreduceDoneDirKey             = "mapreduce.jobhistory.done-dir"
	MapreduceIntermediateDoneDirKey = "mapreduce.jobhistory.intermediate-done-dir"
)

// PathResolver resolves the path info of a single JobHistory server
type PathResolver interface {
	Resolve(ctx context.Context, host string) (*models.ResolvedPathInfo, error)
}

// Resolver reads a JobHistory server's live configuration over HTTP
type Resolver struct {
	client   *resty.Client
	confPath string
	scheme   string
	log      *logrus.Logger
}

// NewResolver creates a Resolver. Requests are never retried.
func NewResolver(cfg config.RefreshConfig, log *logrus.Logger) *Resolver {
	client := resty.New().
		SetTimeout(cfg.HTTPTimeout).
		SetRetryCount(0)

	return &Resolver{
		client:   client,
		confPath: cfg.ConfPath,
		scheme:   cfg.Scheme,
		log:      log,
	}
}

// confURL builds the configuration endpoint for host, which may carry its own scheme
func (r *Resolver) confURL(host string) string {
	base := host
	if !strings.Contains(host, "://") {
		base = "http://" + host
	}
	return strings.TrimSuffix(base, "/") + r.confPath
}

// Resolve fetches host's configuration and returns its normalized path info
func (r *Resolver) Resolve(ctx context.Context, host string) (*models.ResolvedPathInfo, error) {
	url := r.confURL(host)
	fail := func(kind error, field string, err error) error {
		return &ResolveError{Host: host, URL: url, Kind: kind, Field: field, Err: err}
	}

	r.log.Debugf("Fetching configuration from %s", url)
	res, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fail(ErrUnreachable, "", err)
	}
	if !res.IsSuccess() {
		return nil, fail(ErrUnreachable, "", fmt.Errorf("status %s", res.Status()))
	}

	body := res.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fail(ErrEmptyBody, "", nil)
	}

	props, err := ExtractProperties(body, res.Header().Get("Content-Type"))
	if err != nil {
		return nil, fail(ErrParse, "", err)
	}

	info := selectPaths(props)
	r.log.WithFields(logrus.Fields{
		"host":                          host,
		DefaultFSKey:                    info.DefaultFS,
		RemoteAppLogDirKey:              info.RemoteLogDir,
		MapreduceDoneDirKey:             info.MapreduceDoneDir,
		MapreduceIntermediateDoneDirKey: info.MapreduceIntermediateDoneDir,
	}).Debug("Selected path properties")

	switch {
	case info.DefaultFS == "":
		return nil, fail(ErrMissingRequiredField, DefaultFSKey, nil)
	case !strings.Contains(info.DefaultFS, r.scheme):
		return nil, fail(ErrMissingRequiredField, DefaultFSKey, fmt.Errorf("%q has no scheme", info.DefaultFS))
	case info.RemoteLogDir == "":
		return nil, fail(ErrMissingRequiredField, RemoteAppLogDirKey, nil)
	case info.MapreduceDoneDir == "":
		return nil, fail(ErrMissingRequiredField, MapreduceDoneDirKey, nil)
	}

	info.RemoteLogDir = NormalizePath(info.DefaultFS, info.RemoteLogDir, r.scheme)
	info.MapreduceDoneDir = NormalizePath(info.DefaultFS, info.MapreduceDoneDir, r.scheme)
	info.MapreduceIntermediateDoneDir = NormalizePath(info.DefaultFS, info.MapreduceIntermediateDoneDir, r.scheme)

	r.log.WithField("host", host).Infof("Resolved path info: %+v", *info)
	return info, nil
}

// selectPaths picks the recognized keys out of props; a later duplicate overrides an earlier one
func selectPaths(props []models.ConfigProperty) *models.ResolvedPathInfo {
	info := &models.ResolvedPathInfo{}
	for _, p := range props {
		switch p.Key {
		case DefaultFSKey:
			info.DefaultFS = p.Value
		case RemoteAppLogDirKey:
			info.RemoteLogDir = p.Value
		case MapreduceDoneDirKey:
			info.MapreduceDoneDir = p.Value
		case MapreduceIntermediateDoneDirKey:
			info.MapreduceIntermediateDoneDir = p.Value
		}
	}
	return info
}

// NormalizePath makes path absolute by joining it onto defaultFS.
// Paths that already contain scheme, and empty paths, are returned unchanged.
func NormalizePath(defaultFS, path, scheme string) string {
	if path == "" || strings.Contains(path, scheme) {
		return path
	}
	return strings.TrimSuffix(defaultFS, "/") + "/" + strings.TrimPrefix(path, "/")
}
