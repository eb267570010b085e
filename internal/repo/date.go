package repo

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dateLayout is fixed width so that TEXT columns sort chronologically.
const dateLayout = "2006-01-02T15:04:05.000000Z"

// Date stores a time.Time as UTC text in SQLite.
type Date time.Time

func (d Date) Value() (driver.Value, error) {
	return time.Time(d).UTC().Format(dateLayout), nil
}

func (d *Date) Scan(value any) error {
	if value == nil {
		*d = Date(time.Time{})
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		*d = Date(v.UTC())
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}

	return fmt.Errorf("cannot scan type %T into Date", value)
}

func (d *Date) parse(s string) error {
	for _, layout := range []string{dateLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Date(t.UTC())
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as Date", s)
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func datePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return Date(*t)
}

func (d *Date) timePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}
