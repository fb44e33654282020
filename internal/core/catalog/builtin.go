package catalog

import (
	"time"

	"github.com/bosun-dev/bosun/internal/core/health"
)

// =============================================================================
// Builtin Catalog
// =============================================================================

// linuxserver.io images expect these by convention.
var linuxserverEnv = map[string]string{
	"PUID": "1000",
	"PGID": "1000",
	"TZ":   "Etc/UTC",
}

// BuiltinEntries returns the applications bosun knows out of the box.
// Declaration order matters: it is the stable tie-break for start ordering.
func BuiltinEntries() []Entry {
	return []Entry{
		{
			ID:          "media-server",
			Description: "Media streaming and organization service",
			Image:       "linuxserver/jellyfin:latest",
			Ports:       []PortSpec{{ContainerPort: 8096, Protocol: "tcp"}},
			Volumes: []VolumeSpec{
				{ContainerPath: "/config", Purpose: "config"},
				{ContainerPath: "/media", Purpose: "media"},
			},
			Env:    cloneEnv(linuxserverEnv),
			Health: health.Contract{Kind: health.KindHTTP, Port: 8096, Path: "/health", Timeout: 120 * time.Second},
		},
		{
			ID:          "download-manager",
			Description: "Download automation service",
			Image:       "linuxserver/qbittorrent:latest",
			Ports:       []PortSpec{{ContainerPort: 8080, Protocol: "tcp"}},
			Volumes: []VolumeSpec{
				{ContainerPath: "/config", Purpose: "config"},
				{ContainerPath: "/downloads", Purpose: "downloads"},
			},
			Env: mergeEnv(linuxserverEnv, map[string]string{
				"WEBUI_PORT": "8080",
			}),
			Health: health.Contract{Kind: health.KindTCP, Port: 8080},
		},
		{
			ID:          "content-aggregator",
			Description: "Content discovery and organization",
			Image:       "linuxserver/sonarr:latest",
			Ports:       []PortSpec{{ContainerPort: 8989, Protocol: "tcp"}},
			Volumes: []VolumeSpec{
				{ContainerPath: "/config", Purpose: "config"},
				{ContainerPath: "/downloads", Purpose: "downloads"},
				{ContainerPath: "/media", Purpose: "media"},
			},
			Env:       cloneEnv(linuxserverEnv),
			DependsOn: []string{"download-manager"},
			Health:    health.Contract{Kind: health.KindTCP, Port: 8989},
		},
	}
}

// BuiltinBundles returns the pre-assembled stacks.
func BuiltinBundles() []Bundle {
	return []Bundle{
		{
			Name:        "media",
			Description: "Media automation stack: server, aggregator, downloader",
			Members:     []string{"media-server", "content-aggregator", "download-manager"},
		},
	}
}

// Builtin returns the builtin catalog. It never fails: the builtin
// definitions are covered by tests against the same validation the
// loader applies to user catalogs.
func Builtin() *Catalog {
	c, err := New(BuiltinEntries(), BuiltinBundles())
	if err != nil {
		panic(err)
	}
	return c
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := cloneEnv(base)
	for k, v := range extra {
		out[k] = v
	}
	return out
}
