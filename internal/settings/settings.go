// Package settings parses the data root's settings.hcl.
//
//	nav  = { a = "A", inbox = "Z" }
//	tags = { todo = "T" }
//
//	git {
//	  binary  = "/usr/bin/git"
//	  timeout = "30s"
//	}
//
//	search {
//	  binary = "rg"
//	}
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/florg/internal/treepath"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileName is the settings file below the data root.
const FileName = "settings.hcl"

// ErrInvalid is matched by every settings validation failure.
var ErrInvalid = errors.New("invalid settings")

type Git struct {
	Binary  string `hcl:"binary,optional"`
	Timeout string `hcl:"timeout,optional"`
}

type Search struct {
	Binary string `hcl:"binary,optional"`
}

// Settings is the decoded file. Raw holds the exact text it came from.
type Settings struct {
	Nav    map[string]string `hcl:"nav,optional"`
	Tags   map[string]string `hcl:"tags,optional"`
	Git    *Git              `hcl:"git,block"`
	Search *Search           `hcl:"search,block"`

	Raw string
}

// Default is used when no settings file exists.
func Default() *Settings {
	return &Settings{Nav: map[string]string{}, Tags: map[string]string{}}
}

// Parse decodes and validates settings text. filename is only used in
// diagnostics.
func Parse(raw []byte, filename string) (*Settings, error) {
	s := Default()
	if len(raw) == 0 {
		return s, nil
	}
	f, diags := hclparse.NewParser().ParseHCL(raw, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, diags.Error())
	}
	if diags := gohcl.DecodeBody(f.Body, nil, s); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, diags.Error())
	}
	if s.Nav == nil {
		s.Nav = map[string]string{}
	}
	if s.Tags == nil {
		s.Tags = map[string]string{}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.Raw = string(raw)
	return s, nil
}

func (s *Settings) validate() error {
	for _, m := range []struct {
		name string
		vals map[string]string
	}{{"nav", s.Nav}, {"tags", s.Tags}} {
		for k, v := range m.vals {
			if _, err := treepath.ParseHuman(v); err != nil {
				return fmt.Errorf("%w: %s.%s: %w", ErrInvalid, m.name, k, err)
			}
		}
	}
	if s.Git != nil && s.Git.Timeout != "" {
		d, err := time.ParseDuration(s.Git.Timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: git.timeout %q is not a positive duration", ErrInvalid, s.Git.Timeout)
		}
	}
	return nil
}

// GitBinary returns the configured git executable or "".
func (s *Settings) GitBinary() string {
	if s == nil || s.Git == nil {
		return ""
	}
	return s.Git.Binary
}

// GitTimeout returns the configured per-call timeout or 0.
func (s *Settings) GitTimeout() time.Duration {
	if s == nil || s.Git == nil || s.Git.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(s.Git.Timeout)
	return d
}

// SearchBinary returns the configured search executable or "rg".
func (s *Settings) SearchBinary() string {
	if s == nil || s.Search == nil || s.Search.Binary == "" {
		return "rg"
	}
	return s.Search.Binary
}
