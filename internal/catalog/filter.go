package catalog

import (
	"strings"

	"confprog/internal/model"
)

// AllRooms is the room filter value that disables room filtering.
const AllRooms = "Todos"

// Filter returns the sessions of the day labelled dayLabel that match the
// room filter and the free-text query, in their original order.
//
// An unknown day yields an empty result. An empty room filter behaves like
// AllRooms. The query is trimmed and lower-cased, then matched as a plain
// substring against the title, the speakers joined by a single space, and
// the entity.
func Filter(c *Catalog, dayLabel, room, query string) []model.Session {
	out := []model.Session{}
	if c == nil {
		return out
	}
	i, ok := c.byLabel[dayLabel]
	if !ok {
		return out
	}

	q := strings.ToLower(strings.TrimSpace(query))
	for _, s := range c.days[i].Sessions {
		if !roomMatches(s, room) {
			continue
		}
		if !queryMatches(s, q) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Filter is a method form of the package-level Filter.
func (c *Catalog) Filter(dayLabel, room, query string) []model.Session {
	return Filter(c, dayLabel, room, query)
}

func roomMatches(s model.Session, room string) bool {
	if room == "" || room == AllRooms {
		return true
	}
	return s.Room == room
}

// queryMatches expects q already trimmed and lower-cased.
func queryMatches(s model.Session, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(strings.Join(s.Speakers, " ")), q) {
		return true
	}
	if s.Entity != "" && strings.Contains(strings.ToLower(s.Entity), q) {
		return true
	}
	return false
}
