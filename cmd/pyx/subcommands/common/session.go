package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
)

var ErrNotAuthenticated = fmt.Errorf(
	"%w: not authenticated. Try `pyx auth TOKEN` first", perrors.ErrPermission,
)

// ClientFactory creates a client for pyx.ai.
type ClientFactory func(apiURL string, token string) (rest.PyxClient, error)

func DefaultClientFactory(apiURL string, token string) (rest.PyxClient, error) {
	return rest.NewClient(apiURL, token)
}

// Session is the state shared by preconditions and a command.
//
// Config and Project are written back by Persist when they are changed.
type Session struct {
	ConfigPath string
	Config     *config.Config

	// APIURL is the effective base URL: --api-url flag, $PYX_API_URL, or the config.
	APIURL string

	// ProjectRoot is the project directory.
	ProjectRoot string

	// Project is the project descriptor. nil until loaded or created.
	Project *project.Descriptor

	Client rest.PyxClient

	Now func() time.Time

	newClient       ClientFactory
	configSnapshot  []byte
	projectSnapshot []byte
}

type SessionOption func(*Session) *Session

func WithClientFactory(f ClientFactory) SessionOption {
	return func(s *Session) *Session {
		s.newClient = f
		return s
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) *Session {
		s.Now = now
		return s
	}
}

// OpenSession loads the config and connects to pyx.ai.
//
// A missing config file is not an error: default config is used.
func OpenSession(cf CommonFlags, options ...SessionOption) (*Session, error) {
	s := &Session{
		ConfigPath:  cf.Config,
		ProjectRoot: cf.Project,
		Now:         time.Now,
		newClient:   DefaultClientFactory,
	}
	for _, o := range options {
		s = o(s)
	}

	conf, err := config.Load(cf.Config)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: failed to load pyx config (%s)", err, cf.Config,
		)
	}
	s.Config = conf
	if s.configSnapshot, err = json.Marshal(conf); err != nil {
		return nil, err
	}

	s.APIURL = conf.APIURL
	if cf.APIURL != "" {
		s.APIURL = cf.APIURL
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) connect() error {
	client, err := s.newClient(s.APIURL, s.Config.UserToken)
	if err != nil {
		return err
	}
	s.Client = client
	return nil
}

// SetToken replaces the user token, and reconnects with it.
func (s *Session) SetToken(token string) error {
	s.Config.UserToken = token
	return s.connect()
}

// ProjectPath is the path to pyx.json of the project.
func (s *Session) ProjectPath() string {
	return filepath.Join(s.ProjectRoot, project.FileName)
}

// LoadProject reads pyx.json in ProjectRoot.
func (s *Session) LoadProject() error {
	desc, err := project.Load(s.ProjectPath())
	if err != nil {
		return err
	}
	buf, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	s.Project = desc
	s.projectSnapshot = buf
	return nil
}

// Persist writes the config and the project descriptor back, if they are changed.
func (s *Session) Persist() error {
	var errs []error

	if s.Config != nil {
		buf, err := json.Marshal(s.Config)
		if err != nil {
			errs = append(errs, err)
		} else if !bytes.Equal(buf, s.configSnapshot) {
			if err := s.Config.Save(s.ConfigPath); err != nil {
				errs = append(errs, err)
			} else {
				s.configSnapshot = buf
			}
		}
	}

	if s.Project != nil {
		buf, err := json.Marshal(s.Project)
		if err != nil {
			errs = append(errs, err)
		} else if !bytes.Equal(buf, s.projectSnapshot) {
			if err := s.Project.Save(s.ProjectPath()); err != nil {
				errs = append(errs, err)
			} else {
				s.projectSnapshot = buf
			}
		}
	}

	return errors.Join(errs...)
}

// MarkProjectSaved tells the current project descriptor is on the disk already.
func (s *Session) MarkProjectSaved() error {
	buf, err := json.Marshal(s.Project)
	if err != nil {
		return err
	}
	s.projectSnapshot = buf
	return nil
}

// Precondition is a step run before a command.
// The first failed precondition stops the command.
type Precondition func(ctx context.Context, logger *log.Logger, s *Session) error

// Prepare runs preconditions in order.
func (s *Session) Prepare(ctx context.Context, logger *log.Logger, preconditions ...Precondition) error {
	for _, p := range preconditions {
		if err := p(ctx, logger, s); err != nil {
			return err
		}
	}
	return nil
}

// SyncCategories refreshes cached categories when they are older than an hour.
//
// Failure of refreshing is not an error. Commands needing categories should check them.
func SyncCategories(ctx context.Context, logger *log.Logger, s *Session) error {
	now := s.Now()
	if !s.Config.CategoriesStale(now) {
		return nil
	}
	logger.Println("updating meta information...")
	cats, err := s.Client.GetCategories(ctx)
	if err != nil {
		logger.Printf("[WARN] cannot update categories. Please check your connection and try again later: %s", err)
		return nil
	}
	if err := s.Config.SetCategories(cats, now); err != nil {
		logger.Printf("[WARN] categories from pyx.ai are broken: %s", err)
	}
	return nil
}

// RequireAuth checks the user has a token.
func RequireAuth(ctx context.Context, logger *log.Logger, s *Session) error {
	if s.Config.UserToken == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// RequireProject loads the project descriptor.
func RequireProject(ctx context.Context, logger *log.Logger, s *Session) error {
	return s.LoadProject()
}

// RequirePublished checks the project has a model id. RequireProject should precede.
func RequirePublished(ctx context.Context, logger *log.Logger, s *Session) error {
	if s.Project == nil {
		return project.ErrProjectNotFound
	}
	return s.Project.CheckUploadable()
}
