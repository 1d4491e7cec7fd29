package csvsource

import (
	"bufio"
	"fmt"
	"os"

	"github.com/ghalamif/bearingsim/internal/ports"
)

const maxLineBytes = 1 << 20

// FileSource streams the lines of a recorded CSV file.
type FileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Open() error {
	if s.file != nil {
		return fmt.Errorf("csv source %s already open", s.path)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	s.file = f
	s.scanner = sc
	return nil
}

func (s *FileSource) Next() (string, bool) {
	if s.scanner == nil || !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}

func (s *FileSource) Err() error {
	if s.scanner == nil {
		return nil
	}
	return s.scanner.Err()
}

func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.scanner = nil
	return err
}

var _ ports.Source = (*FileSource)(nil)
