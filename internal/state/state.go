package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
)

// FileName is the per-user state file inside the state directory.
const FileName = "server.json"

// ServerRecord is what is remembered about one dev server.
type ServerRecord struct {
	LastHost  string `json:"lastHost"`
	LastPort  int    `json:"lastPort"`
	Framework string `json:"framework,omitempty"`
	LogFile   string `json:"logFile,omitempty"`
}

// Session is the last dev session of one project.
type Session struct {
	ID        string       `json:"id"`
	Project   string       `json:"project"`
	StartedAt time.Time    `json:"startedAt"`
	WebServer ServerRecord `json:"webServer"`
	AppServer ServerRecord `json:"appServer"`
}

// File is the on-disk layout, keyed by project root.
type File struct {
	Sessions map[string]*Session `json:"sessions"`
}

// Store reads and writes the state file.
type Store struct {
	dir string
}

// DefaultStore keeps state under ~/.react2app.
func DefaultStore() (*Store, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	return NewStore(filepath.Join(home, ".react2app")), nil
}

// NewStore keeps state in dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the state file; a missing or unreadable file is empty state.
func (s *Store) Load() (*File, error) {
	f := &File{Sessions: map[string]*Session{}}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, f); err != nil {
		return &File{Sessions: map[string]*Session{}}, nil
	}
	if f.Sessions == nil {
		f.Sessions = map[string]*Session{}
	}
	return f, nil
}

// Record stores a new session for project and returns it.
func (s *Store) Record(project string, web, app ServerRecord) (*Session, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		Project:   project,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		WebServer: web,
		AppServer: app,
	}
	f.Sessions[project] = session

	if err := s.save(f); err != nil {
		return nil, err
	}
	return session, nil
}

// Lookup returns the last session recorded for project.
func (s *Store) Lookup(project string) (*Session, bool, error) {
	f, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	session, ok := f.Sessions[project]
	return session, ok, nil
}

// Forget removes the project's session and its log files.
func (s *Store) Forget(project string) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	delete(f.Sessions, project)
	if err := s.save(f); err != nil {
		return err
	}
	if err := os.RemoveAll(s.LogDir(project)); err != nil {
		return fmt.Errorf("failed to remove logs: %w", err)
	}
	return nil
}

// LogDir is where the project's dev server logs are written.
func (s *Store) LogDir(project string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+project)).String()[:8]
	return filepath.Join(s.dir, "logs", filepath.Base(project)+"-"+id)
}

// LogPath is the log file of one server, whether or not it exists yet.
func (s *Store) LogPath(project, server string) string {
	return filepath.Join(s.LogDir(project), server+".log")
}

// OpenLog truncates and opens the log file of one server.
func (s *Store) OpenLog(project, server string) (*os.File, error) {
	if err := os.MkdirAll(s.LogDir(project), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(s.LogPath(project, server))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func (s *Store) save(f *File) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
