// Package profiling captures Go runtime profiles around a single run.
//
// A Session starts the CPU profile when it is created and, on Stop, writes
// the CPU profile plus a final snapshot of every other requested profile
// into one directory:
//
//	sess, err := profiling.Start(profiling.Config{Dir: "./pprof"})
//	if err != nil {
//	    return err
//	}
//	defer sess.Stop()
package profiling

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine, ProfileBlock, ProfileMutex, ProfileAllocs}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}
}

// ParseProfileTypes parses a comma-separated string into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	parts := strings.Split(s, ",")
	types := make([]ProfileType, 0, len(parts))
	for _, p := range parts {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		types = append(types, pt)
	}
	return types, nil
}

// Config selects what a Session records.
type Config struct {
	Dir      string
	Profiles []ProfileType // empty means DefaultProfileTypes
}

func (c Config) has(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Session is an in-progress profiling capture.
type Session struct {
	config Config
	cpu    bytes.Buffer

	once  sync.Once
	files []string
	err   error
}

// Start creates cfg.Dir and begins profiling. Only one CPU profile can be
// active per process.
func Start(cfg Config) (*Session, error) {
	if cfg.Dir == "" {
		return nil, errors.New("profile directory is required")
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfileTypes()
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	s := &Session{config: cfg}
	if cfg.has(ProfileCPU) {
		if err := pprof.StartCPUProfile(&s.cpu); err != nil {
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}
	if cfg.has(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.has(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}
	return s, nil
}

// Stop ends the capture and writes one <type>.pprof file per profile. It
// returns the written paths. Later calls return the first result.
func (s *Session) Stop() ([]string, error) {
	s.once.Do(func() {
		var errs []error
		for _, pt := range s.config.Profiles {
			path, err := s.write(pt)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s profile: %w", pt, err))
				continue
			}
			s.files = append(s.files, path)
		}

		if s.config.has(ProfileBlock) {
			runtime.SetBlockProfileRate(0)
		}
		if s.config.has(ProfileMutex) {
			runtime.SetMutexProfileFraction(0)
		}
		s.err = errors.Join(errs...)
	})
	return s.files, s.err
}

// Dir returns the output directory.
func (s *Session) Dir() string {
	return s.config.Dir
}

func (s *Session) write(pt ProfileType) (string, error) {
	data := &s.cpu
	if pt == ProfileCPU {
		pprof.StopCPUProfile()
	} else {
		p := pprof.Lookup(string(pt))
		if p == nil {
			return "", fmt.Errorf("no runtime profile named %q", pt)
		}
		data = new(bytes.Buffer)
		if err := p.WriteTo(data, 0); err != nil {
			return "", err
		}
	}

	path := filepath.Join(s.config.Dir, string(pt)+".pprof")
	if err := atomic.WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}
