package job

// FieldMap names the persisted columns (or document fields) backing the four
// scheduling fields. Backends take a FieldMap at construction so the
// scheduler can run against an existing table whose column names differ from
// the defaults. Names are bound once, as typed struct members; nothing in
// the core resolves field paths at runtime.
//
// Empty members fall back to the defaults, so callers override only what
// differs:
//
//	store := sqlite.New(db, sqlite.WithFieldMap(job.FieldMap{SleepUntil: "wake_at"}))
type FieldMap struct {
	SleepUntil  string
	Interval    string
	RepeatUntil string
	AutoRemove  string
}

// DefaultFieldMap returns the default column names.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		SleepUntil:  "sleep_until",
		Interval:    "interval",
		RepeatUntil: "repeat_until",
		AutoRemove:  "auto_remove",
	}
}

// OrDefaults returns a copy with empty members replaced by the defaults.
func (f FieldMap) OrDefaults() FieldMap {
	d := DefaultFieldMap()
	if f.SleepUntil == "" {
		f.SleepUntil = d.SleepUntil
	}
	if f.Interval == "" {
		f.Interval = d.Interval
	}
	if f.RepeatUntil == "" {
		f.RepeatUntil = d.RepeatUntil
	}
	if f.AutoRemove == "" {
		f.AutoRemove = d.AutoRemove
	}
	return f
}
