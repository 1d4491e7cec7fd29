package ports

// Source yields the raw lines of a recording in order.
type Source interface {
	Open() error
	Next() (string, bool)
	Err() error
	Close() error
	Name() string
}
