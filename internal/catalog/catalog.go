package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	appLog "confprog/internal/log"
	"confprog/internal/model"
)

var (
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrSessionNotFound = errors.New("session not found")
)

// dataset is the on-disk shape of the program.
type dataset struct {
	Days []model.Day `json:"days" yaml:"days" validate:"required,min=1,dive"`
}

type sessionRef struct {
	day     int
	session int
}

// Catalog is the immutable multi-day schedule.
type Catalog struct {
	days    []model.Day
	byLabel map[string]int
	byID    map[string]sessionRef
}

// Load reads the dataset from a local path or, for http(s) sources, through
// the given fetcher. A nil fetcher gets a default one with cacheDir "".
func Load(ctx context.Context, source string, f *Fetcher) (*Catalog, error) {
	var (
		body []byte
		err  error
	)
	if isRemote(source) {
		if f == nil {
			f = NewFetcher("")
		}
		var res FetchResult
		res, err = f.FetchOne(ctx, source)
		body = res.Body
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	c, err := Parse(body)
	if err != nil {
		appLog.Error("catalog parse failed", err, "source", redactURL(source))
		return nil, err
	}

	appLog.Info("catalog loaded", "source", redactURL(source), "days", len(c.days), "sessions", len(c.byID))
	return c, nil
}

// Parse decodes a YAML or JSON dataset into a Catalog.
func Parse(body []byte) (*Catalog, error) {
	var ds dataset
	var err error
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &ds)
	} else {
		err = yaml.Unmarshal(body, &ds)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(ds.Days)
}

// New validates days and builds the lookup indexes. Sessions without an
// explicit id get one derived from (date, time, title).
func New(days []model.Day) (*Catalog, error) {
	if err := validate.Struct(dataset{Days: days}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		days:    make([]model.Day, len(days)),
		byLabel: make(map[string]int, len(days)),
		byID:    make(map[string]sessionRef),
	}

	for di, d := range days {
		if _, dup := c.byLabel[d.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate day label %q", ErrInvalidCatalog, d.Label)
		}
		c.byLabel[d.Label] = di

		day := d
		day.Sessions = make([]model.Session, len(d.Sessions))
		for si, s := range d.Sessions {
			if _, err := time.Parse("15:04", s.Time); err != nil {
				return nil, fmt.Errorf("%w: day %q session %q: time %q is not HH:MM", ErrInvalidCatalog, d.Label, s.Title, s.Time)
			}
			s.Speakers = slices.Clone(s.Speakers)
			if s.ID == "" {
				s.ID = SessionID(d.Date, s.Time, s.Title)
			}
			id := s.ID
			for n := 2; ; n++ {
				if _, taken := c.byID[id]; !taken {
					break
				}
				id = fmt.Sprintf("%s-%d", s.ID, n)
			}
			s.ID = id
			c.byID[id] = sessionRef{day: di, session: si}
			day.Sessions[si] = s
		}
		c.days[di] = day
	}

	return c, nil
}

// SessionID derives the stable synthetic id of a session.
func SessionID(date, hhmm, title string) string {
	sum := sha256.Sum256([]byte(date + "|" + hhmm + "|" + title))
	return hex.EncodeToString(sum[:6])
}

// Days returns a copy of the days in declaration order.
func (c *Catalog) Days() []model.Day {
	out := make([]model.Day, len(c.days))
	for i, d := range c.days {
		d.Sessions = slices.Clone(d.Sessions)
		out[i] = d
	}
	return out
}

// Day resolves a day by its label.
func (c *Catalog) Day(label string) (model.Day, bool) {
	i, ok := c.byLabel[label]
	if !ok {
		return model.Day{}, false
	}
	d := c.days[i]
	d.Sessions = slices.Clone(d.Sessions)
	return d, true
}

// DayLabels lists day labels in declaration order.
func (c *Catalog) DayLabels() []string {
	out := make([]string, len(c.days))
	for i, d := range c.days {
		out[i] = d.Label
	}
	return out
}

// DayOrder lists day dates in declaration order. Favorites are stamped with
// dates, so grouping uses this order.
func (c *Catalog) DayOrder() []string {
	out := make([]string, len(c.days))
	for i, d := range c.days {
		out[i] = d.Date
	}
	return out
}

// LabelForDate maps a day date back to its display label.
func (c *Catalog) LabelForDate(date string) string {
	for _, d := range c.days {
		if d.Date == date {
			return d.Label
		}
	}
	return date
}

// Rooms lists distinct rooms in first-seen order.
func (c *Catalog) Rooms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range c.days {
		for _, s := range d.Sessions {
			if s.Room == "" || seen[s.Room] {
				continue
			}
			seen[s.Room] = true
			out = append(out, s.Room)
		}
	}
	return out
}

// Lookup resolves a session id to its owning day and session. The returned
// Day carries label and date only.
func (c *Catalog) Lookup(id string) (model.Day, model.Session, error) {
	ref, ok := c.byID[id]
	if !ok {
		return model.Day{}, model.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	d := c.days[ref.day]
	s := d.Sessions[ref.session]
	d.Sessions = nil
	return d, s, nil
}

// Len returns the total number of sessions.
func (c *Catalog) Len() int {
	return len(c.byID)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

var validate = validator.New(validator.WithRequiredStructEnabled())
