package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bosun-dev/bosun/internal/core/health"
)

// =============================================================================
// Catalog File Loading
// =============================================================================

// The catalog file format is a closed schema: unknown fields are rejected,
// never silently interpreted. Durations are written in Go syntax ("90s").
//
//	entries:
//	  - id: media-server
//	    image: linuxserver/jellyfin:latest
//	    ports:
//	      - container: 8096
//	    volumes:
//	      - path: /config
//	        purpose: config
//	    env:
//	      TZ: Etc/UTC
//	    depends_on: [download-manager]
//	    health:
//	      kind: http
//	      port: 8096
//	      path: /health
//	      timeout: 120s
//	bundles:
//	  - name: media
//	    members: [media-server, download-manager]

type catalogDoc struct {
	Entries []entryDoc  `yaml:"entries"`
	Bundles []bundleDoc `yaml:"bundles"`
}

type entryDoc struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Image       string            `yaml:"image"`
	Ports       []portDoc         `yaml:"ports"`
	Volumes     []volumeDoc       `yaml:"volumes"`
	Env         map[string]string `yaml:"env"`
	DependsOn   []string          `yaml:"depends_on"`
	Health      *healthDoc        `yaml:"health"`
	Restart     string            `yaml:"restart"`
}

type portDoc struct {
	Container int    `yaml:"container"`
	Protocol  string `yaml:"protocol"`
}

type volumeDoc struct {
	Path    string `yaml:"path"`
	Purpose string `yaml:"purpose"`
}

type healthDoc struct {
	Kind    string `yaml:"kind"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	Grace   string `yaml:"grace"`
	Timeout string `yaml:"timeout"`
}

type bundleDoc struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Members     []string `yaml:"members"`
}

// Load parses a catalog document and merges it over the builtin catalog.
// Entries in the document shadow builtin entries with the same id.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc catalogDoc
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	entries := BuiltinEntries()
	shadowed := make(map[string]int, len(entries))
	for i, e := range entries {
		shadowed[e.ID] = i
	}

	for i, ed := range doc.Entries {
		entry, err := ed.toEntry()
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("entries[%d]", i), err.Error(), err)
		}
		if idx, ok := shadowed[entry.ID]; ok {
			entries[idx] = entry
		} else {
			shadowed[entry.ID] = len(entries)
			entries = append(entries, entry)
		}
	}

	bundles := BuiltinBundles()
	byName := make(map[string]int, len(bundles))
	for i, b := range bundles {
		byName[b.Name] = i
	}
	for _, bd := range doc.Bundles {
		b := Bundle{Name: bd.Name, Description: bd.Description, Members: bd.Members}
		if idx, ok := byName[b.Name]; ok {
			bundles[idx] = b
		} else {
			byName[b.Name] = len(bundles)
			bundles = append(bundles, b)
		}
	}

	return New(entries, bundles)
}

// LoadFile loads a catalog file, or just the builtin catalog when path
// is empty or the file does not exist.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Builtin(), nil
		}
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (ed entryDoc) toEntry() (Entry, error) {
	e := Entry{
		ID:          ed.ID,
		Description: ed.Description,
		Image:       ed.Image,
		Env:         ed.Env,
		DependsOn:   ed.DependsOn,
		Restart:     ed.Restart,
	}
	for _, p := range ed.Ports {
		e.Ports = append(e.Ports, PortSpec{ContainerPort: p.Container, Protocol: p.Protocol})
	}
	for _, v := range ed.Volumes {
		e.Volumes = append(e.Volumes, VolumeSpec{ContainerPath: v.Path, Purpose: v.Purpose})
	}
	if ed.Health != nil {
		contract, err := ed.Health.toContract()
		if err != nil {
			return Entry{}, err
		}
		e.Health = contract
	}
	return e, nil
}

func (hd healthDoc) toContract() (health.Contract, error) {
	c := health.Contract{
		Kind: health.Kind(hd.Kind),
		Port: hd.Port,
		Path: hd.Path,
	}
	if hd.Grace != "" {
		d, err := time.ParseDuration(hd.Grace)
		if err != nil {
			return c, fmt.Errorf("invalid grace duration %q: %w", hd.Grace, err)
		}
		c.Grace = d
	}
	if hd.Timeout != "" {
		d, err := time.ParseDuration(hd.Timeout)
		if err != nil {
			return c, fmt.Errorf("invalid timeout duration %q: %w", hd.Timeout, err)
		}
		c.Timeout = d
	}
	return c, nil
}
