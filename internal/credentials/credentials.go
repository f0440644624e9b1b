package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"ccm/internal/logx"
)

const (
	// DefaultFileName is probed under the config root when no file is given.
	DefaultFileName = ".dse.ini"
	Section         = "dse_credentials"
	UsernameKey     = "dse_username"
	PasswordKey     = "dse_password"
)

// Credentials is an optional username/password pair for archive downloads.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether neither field is set. A nil receiver is empty.
func (c *Credentials) Empty() bool {
	return c == nil || (c.Username == "" && c.Password == "")
}

// Source collects the explicit inputs a caller may supply.
type Source struct {
	Username string
	Password string
	// File is an ini file path; empty means probe DefaultPath.
	File string
}

// DefaultPath returns the credentials file probed under configRoot.
func DefaultPath(configRoot string) string {
	return filepath.Join(configRoot, DefaultFileName)
}

// Load resolves credentials from src, falling back to the ini file for any
// field not given explicitly. It returns nil when nothing is found; missing
// credentials are never an error here.
func Load(src Source, configRoot string, log logrus.FieldLogger) (*Credentials, error) {
	log = logx.OrDiscard(log)

	path := src.File
	if path == "" && configRoot != "" {
		candidate := DefaultPath(configRoot)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			path = candidate
		}
	}

	creds := &Credentials{}
	if path != "" {
		fromFile, err := readFile(path, log)
		if err != nil {
			return nil, err
		}
		if fromFile != nil {
			*creds = *fromFile
		}
	}
	if src.Username != "" {
		creds.Username = src.Username
	}
	if src.Password != "" {
		creds.Password = src.Password
	}
	if creds.Empty() {
		return nil, nil
	}
	return creds, nil
}

func readFile(path string, log logrus.FieldLogger) (*Credentials, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Warn("credentials file not found")
		return nil, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", path, err)
	}
	if !cfg.HasSection(Section) {
		log.Warnf("%s does not contain a '%s' section.", path, Section)
		return nil, nil
	}
	section := cfg.Section(Section)
	return &Credentials{
		Username: section.Key(UsernameKey).String(),
		Password: section.Key(PasswordKey).String(),
	}, nil
}
