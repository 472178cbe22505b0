package site

import (
	"io/ioutil"
	"mime"
	"path"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrAssetNotFound means no asset is served on a route
	ErrAssetNotFound = errors.New("asset not found")
)

// Asset is a static file kept in memory
type Asset struct {
	Route       string
	ContentType string
	Body        []byte
}

// LoadAssets reads the files served on routes once. resolve maps a route to
// the file backing it. A file that cannot be read is left out and its route
// reports ErrAssetNotFound.
func LoadAssets(resolve func(string) string, routes ...string) *Assets {
	a := &Assets{
		m: make(map[string]*Asset, len(routes)),
	}
	for _, r := range routes {
		if r == "" {
			continue
		}
		body, err := ioutil.ReadFile(resolve(r))
		if err != nil {
			log.Warnf("Static asset for %s not loaded: %s", r, err)
			continue
		}
		a.m[r] = &Asset{
			Route:       r,
			ContentType: contentType(r),
			Body:        body,
		}
		log.Debugf("Loaded static asset %s (%d bytes)", r, len(body))
	}

	return a
}

// Assets holds the static files of one epoch
type Assets struct {
	m map[string]*Asset
}

// Read returns the asset served on route
func (a *Assets) Read(route string) (*Asset, error) {
	asset, ok := a.m[route]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

func contentType(route string) string {
	switch path.Ext(route) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(route)); t != "" {
		return t
	}
	return "application/octet-stream"
}
