package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"confprog/internal/model"
)

const (
	DefaultProductID = "-//confprog//Programa//ES"
	DefaultUIDDomain = "confprog.local"
)

var ErrMalformedSession = errors.New("malformed session")

// Encoder renders sessions as iCalendar documents.
type Encoder struct {
	ProductID string
	UIDDomain string
	Now       func() time.Time
}

// NewEncoder returns an encoder; empty arguments select the defaults.
func NewEncoder(productID, uidDomain string) *Encoder {
	if productID == "" {
		productID = DefaultProductID
	}
	if uidDomain == "" {
		uidDomain = DefaultUIDDomain
	}
	return &Encoder{ProductID: productID, UIDDomain: uidDomain, Now: time.Now}
}

var defaultEncoder = NewEncoder("", "")

// Encode renders one session with the default encoder.
func Encode(s model.Session, dayDate string, loc *time.Location) ([]byte, string, error) {
	return defaultEncoder.Encode(s, dayDate, loc)
}

// Encode renders s, held on dayDate (YYYY-MM-DD), as a single-event
// calendar. Wall-clock times are read in loc; nil means time.Local.
func (e *Encoder) Encode(s model.Session, dayDate string, loc *time.Location) ([]byte, string, error) {
	cal := e.newCalendar()
	if err := e.addEvent(cal, s, dayDate, loc); err != nil {
		return nil, "", err
	}
	return []byte(cal.Serialize()), Filename(s.Title), nil
}

// EncodeAll renders every favorite entry into one calendar. Any malformed
// entry fails the whole document.
func (e *Encoder) EncodeAll(entries model.FavoritesList, loc *time.Location) ([]byte, error) {
	cal := e.newCalendar()
	for _, entry := range entries {
		if err := e.addEvent(cal, entry.Session, entry.Day, loc); err != nil {
			return nil, err
		}
	}
	return []byte(cal.Serialize()), nil
}

func (e *Encoder) newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(e.ProductID)
	cal.SetMethod(ical.MethodPublish)
	return cal
}

func (e *Encoder) addEvent(cal *ical.Calendar, s model.Session, dayDate string, loc *time.Location) error {
	start, err := sessionStart(s, dayDate, loc)
	if err != nil {
		return err
	}
	end := start.Add(s.Duration())

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	ev := cal.AddEvent(e.uid(s, dayDate))
	ev.SetDtStampTime(now())
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(s.Title)
	if desc := description(s); desc != "" {
		ev.SetDescription(desc)
	}
	if s.Room != "" {
		ev.SetLocation(s.Room)
	}
	ev.SetStatus(ical.ObjectStatusConfirmed)
	return nil
}

func sessionStart(s model.Session, dayDate string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s.Title) == "" {
		return time.Time{}, fmt.Errorf("%w: missing title", ErrMalformedSession)
	}
	if strings.TrimSpace(s.Time) == "" {
		return time.Time{}, fmt.Errorf("%w: missing time", ErrMalformedSession)
	}
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", dayDate+" "+s.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q on %q: %w", ErrMalformedSession, s.Time, dayDate, err)
	}
	return start, nil
}

func (e *Encoder) uid(s model.Session, dayDate string) string {
	id := s.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(dayDate+"|"+s.Time+"|"+s.Title)).String()
	}
	return id + "@" + e.UIDDomain
}

func description(s model.Session) string {
	var lines []string
	if len(s.Speakers) > 0 {
		lines = append(lines, "Ponentes: "+strings.Join(s.Speakers, ", "))
	}
	if s.Entity != "" {
		lines = append(lines, "Entidad: "+s.Entity)
	}
	return strings.Join(lines, "\n")
}

// Filename keeps ASCII letters and digits of title, replaces every other
// character with '_' and appends ".ics".
func Filename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString(".ics")
	return b.String()
}
