package ports

import "time"

type Policy struct {
	WindowSize   int           `yaml:"size"`
	Pacing       time.Duration `yaml:"pacing"`
	ReadingDelay time.Duration `yaml:"reading_delay"`

	// Year replaces the recorded year when building summary keys.
	Year int `yaml:"year"`
}
