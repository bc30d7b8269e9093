package api

import (
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

// App is what handlers need from the running process. It never exposes the
// unscoped maintenance repository.
type App interface {
	Logger() internal.Logger
	SessionRepo() storage.SessionRepository
	EventRepo() storage.EventRepository
}

type app struct {
	logger internal.Logger
	repos  *storage.Repositories
}

func NewApp(logger internal.Logger, repos *storage.Repositories) App {
	return &app{logger: logger, repos: repos}
}

func (a *app) Logger() internal.Logger                { return a.logger }
func (a *app) SessionRepo() storage.SessionRepository { return a.repos.Sessions }
func (a *app) EventRepo() storage.EventRepository     { return a.repos.Events }
