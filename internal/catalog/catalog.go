// Package catalog reads the raster manifest: for every domain and timestamp,
// the data image, legend image and level breaks of each variable.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"gopkg.in/yaml.v2"
)

// ErrUnknownDomain is returned for a domain the manifest does not list.
var ErrUnknownDomain = errors.New("unknown domain")

// timestampLayouts are tried in order when parsing manifest keys.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02_15:04:05",
	time.RFC3339,
}

// RasterInfo locates one variable's images at one timestamp. Paths are
// relative to the manifest's raster base unless absolute.
type RasterInfo struct {
	Raster   string            `yaml:"raster" json:"raster"`
	Colorbar string            `yaml:"colorbar" json:"colorbar"`
	Levels   domain.LevelTable `yaml:"levels" json:"levels,omitempty"`
}

// HasColorbar reports whether the variable is decodable.
func (r RasterInfo) HasColorbar() bool {
	return r.Colorbar != ""
}

// manifest is the file layout: domains -> timestamp -> variable -> raster.
type manifest struct {
	RasterBase string                                      `yaml:"raster_base"`
	Domains    map[string]map[string]map[string]RasterInfo `yaml:"domains"`
}

// Frame is every variable at one timestamp.
type Frame struct {
	Timestamp time.Time
	Rasters   map[string]RasterInfo
}

// Catalog is an immutable, parsed manifest.
type Catalog struct {
	base    string
	domains map[string][]Frame
}

// Load reads a manifest file. YAML and JSON are both accepted.
func Load(p string) (*Catalog, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", p, err)
	}
	if cat.base == "" {
		cat.base = filepath.Dir(p) + string(filepath.Separator)
	}
	return cat, nil
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	cat := &Catalog{base: m.RasterBase, domains: make(map[string][]Frame, len(m.Domains))}
	for name, stamps := range m.Domains {
		frames := make([]Frame, 0, len(stamps))
		for key, rasters := range stamps {
			ts, err := ParseTimestamp(key)
			if err != nil {
				return nil, fmt.Errorf("domain %s: %w", name, err)
			}
			frames = append(frames, Frame{Timestamp: ts, Rasters: rasters})
		}
		sort.Slice(frames, func(i, j int) bool {
			return frames[i].Timestamp.Before(frames[j].Timestamp)
		})
		cat.domains[name] = frames
	}
	return cat, nil
}

// ParseTimestamp accepts the manifest's timestamp spellings. Times without a
// zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// SetBase overrides the manifest's raster base.
func (c *Catalog) SetBase(base string) {
	c.base = base
}

// Base returns the raster base.
func (c *Catalog) Base() string {
	return c.base
}

// Domains returns domain names in lexical order.
func (c *Catalog) Domains() []string {
	names := make([]string, 0, len(c.domains))
	for name := range c.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasDomain reports whether the manifest lists name.
func (c *Catalog) HasDomain(name string) bool {
	_, ok := c.domains[name]
	return ok
}

// Frames returns the domain's frames in ascending time order.
func (c *Catalog) Frames(name string) ([]Frame, error) {
	frames, ok := c.domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	return frames, nil
}

// Timestamps returns the domain's timestamps within [start, end], ascending.
// A zero start or end leaves that side open.
func (c *Catalog) Timestamps(name string, start, end time.Time) ([]time.Time, error) {
	frames, err := c.Frames(name)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, f := range frames {
		if !start.IsZero() && f.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && f.Timestamp.After(end) {
			continue
		}
		out = append(out, f.Timestamp)
	}
	return out, nil
}

// Lookup returns the variable's raster at ts.
func (c *Catalog) Lookup(name string, ts time.Time, variable string) (RasterInfo, bool) {
	frames := c.domains[name]
	i := sort.Search(len(frames), func(i int) bool {
		return !frames[i].Timestamp.Before(ts)
	})
	if i == len(frames) || !frames[i].Timestamp.Equal(ts) {
		return RasterInfo{}, false
	}
	info, ok := frames[i].Rasters[variable]
	return info, ok
}

// Resolve joins a manifest path with the raster base. Absolute URLs are
// returned unchanged. Under an http(s) base every path, including one with a
// leading slash, stays below the base path; under a directory base absolute
// file paths are returned unchanged.
func (c *Catalog) Resolve(p string) string {
	if p == "" {
		return ""
	}
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return p
	}
	if c.base == "" {
		return p
	}
	if base, err := url.Parse(c.base); err == nil && (base.Scheme == "http" || base.Scheme == "https") {
		joined := *base
		joined.Path = path.Join("/", base.Path, p)
		joined.RawPath = ""
		return joined.String()
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.base, filepath.FromSlash(p))
}
