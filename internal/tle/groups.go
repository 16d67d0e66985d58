package tle

import (
	"fmt"
	"sort"
	"strconv"
)

const celestrakGroupURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=%s&FORMAT=tle"

// Group is one selectable CelesTrak element group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// URL returns the TLE-format download link for the group.
func (g Group) URL() string {
	return fmt.Sprintf(celestrakGroupURL, g.Slug)
}

var groups = []Group{
	{"1", "Last 30 Days' Launches", "last-30-days"},
	{"2", "Space Stations", "stations"},
	{"3", "100 Brightest", "visual"},
	{"4", "Active Satellites", "active"},
	{"5", "Analyst Satellites", "analyst"},
	{"6", "Russian ASAT (COSMOS 1408)", "cosmos-1408-debris"},
	{"7", "Chinese ASAT (FENGYUN 1C)", "fengyun-1c-debris"},
	{"8", "IRIDIUM 33 Debris", "iridium-33-debris"},
	{"9", "COSMOS 2251 Debris", "cosmos-2251-debris"},
	{"10", "Weather", "weather"},
	{"11", "NOAA", "noaa"},
	{"12", "GOES", "goes"},
	{"13", "Earth Resources", "resource"},
	{"14", "SARSAT", "sarsat"},
	{"15", "Disaster Monitoring", "dmc"},
	{"16", "TDRSS", "tdrss"},
	{"17", "ARGOS", "argos"},
	{"18", "Planet", "planet"},
	{"19", "Spire", "spire"},
	{"20", "Starlink", "starlink"},
	{"21", "OneWeb", "oneweb"},
	{"22", "GPS Operational", "gps-ops"},
	{"23", "Galileo", "galileo"},
	{"24", "Amateur Radio", "amateur"},
	{"25", "CubeSats", "cubesat"},
}

// Groups returns the catalog ordered by numeric id.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// LookupGroups resolves ids in order, returning the matched groups and the
// ids that matched nothing. Duplicates are resolved once.
func LookupGroups(ids []string) (found []Group, unknown []string) {
	byID := make(map[string]Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if g, ok := byID[id]; ok {
			found = append(found, g)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}

// GroupURLs maps groups to their download links.
func GroupURLs(gs []Group) []string {
	urls := make([]string, len(gs))
	for i, g := range gs {
		urls[i] = g.URL()
	}
	return urls
}
