package lockstore

import (
	"fmt"
	"time"
)

// Record is the persisted lock state of one testbench address.
type Record struct {
	// Holder is the user holding the lock, or "" when free.
	Holder string
	// HeldSince is the acquisition time, or the creation time for free records.
	HeldSince time.Time
}

// Free reports whether nobody holds the lock.
func (r Record) Free() bool { return r.Holder == "" }

// timeLayouts are the encodings found in locked_since columns: the
// modernc sqlite writer, RFC 3339, and the naive local timestamps the
// Python sqlite3 adapter produced in older shared databases.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// heldSince scans whatever representation the driver hands back for a
// TIMESTAMP column.
type heldSince struct{ t time.Time }

func (h *heldSince) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		h.t = time.Time{}
		return nil
	case time.Time:
		h.t = v
		return nil
	case []byte:
		return h.parse(string(v))
	case string:
		return h.parse(v)
	case int64:
		h.t = time.Unix(v, 0)
		return nil
	default:
		return fmt.Errorf("unsupported locked_since type %T", src)
	}
}

func (h *heldSince) parse(s string) error {
	if s == "" {
		h.t = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			h.t = t
			return nil
		}
	}
	return fmt.Errorf("unparseable locked_since value %q", s)
}
