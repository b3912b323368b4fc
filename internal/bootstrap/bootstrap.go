// Package bootstrap assembles the stores, identity provider, repositories and
// services described by a config.Config.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	fsstore "github.com/quipper/poc/sis/be/internal/docstore/firestore"
	pgstore "github.com/quipper/poc/sis/be/internal/docstore/postgres"
	sqlitestore "github.com/quipper/poc/sis/be/internal/docstore/sqlite"
	"github.com/quipper/poc/sis/be/internal/config"
	"github.com/quipper/poc/sis/be/internal/identity/firebase"
	"github.com/quipper/poc/sis/be/internal/identity/local"
	"github.com/quipper/poc/sis/be/internal/reconcile"
	gradesrepo "github.com/quipper/poc/sis/be/internal/repositories/grades/docstore"
	groupsrepo "github.com/quipper/poc/sis/be/internal/repositories/groups/docstore"
	"github.com/quipper/poc/sis/be/internal/repositories/revocation"
	subjectsrepo "github.com/quipper/poc/sis/be/internal/repositories/subjects/docstore"
	usersrepo "github.com/quipper/poc/sis/be/internal/repositories/users/docstore"
	"github.com/quipper/poc/sis/be/internal/service"
	"github.com/quipper/poc/sis/be/pkg/common/cache"
	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/common/mailer"
	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/docstore"
	"github.com/quipper/poc/sis/be/pkg/identity"
)

// App holds every long-lived dependency of the server and admin CLI.
type App struct {
	Config   *config.Config
	Store    docstore.Store
	Provider identity.Provider
	// Keys is nil unless the local provider is in use.
	Keys    *keys.Set
	Revoked *revocation.SQLiteRepo
	Cache   cache.Client
	Metrics *metrics.Metrics

	Users      *service.UserService
	Subjects   *service.SubjectService
	Groups     *service.GroupService
	Grades     *service.GradeService
	Session    *service.SessionService
	Reconciler *reconcile.Reconciler

	closers []func()
}

// New wires an App from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if app.Metrics, err = metrics.New(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if app.Store, err = openStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	app.onClose(func() { _ = app.Store.Close() })

	if err = app.openProvider(ctx); err != nil {
		return nil, fmt.Errorf("init identity: %w", err)
	}
	if app.Revoked, err = revocation.NewSQLiteRepo(cfg.Revocation.SQLitePath); err != nil {
		return nil, fmt.Errorf("init revocation repo: %w", err)
	}
	app.onClose(app.Revoked.Disconnect)

	if app.Cache, err = cache.New(cfg.Cache); err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	app.onClose(func() { _ = app.Cache.Close() })

	var sender mailer.Sender
	if s := mailer.New(cfg.SMTP); s != nil {
		sender = s
	} else {
		logger.Info("smtp not configured; action links are returned but not mailed")
	}

	users := usersrepo.NewRepo(app.Store, app.Provider)
	subjects := subjectsrepo.NewRepo(app.Store)
	groups := groupsrepo.NewRepo(app.Store)
	grades := gradesrepo.NewRepo(app.Store)

	app.Users = service.NewUserService(users, app.Metrics)
	app.Subjects = service.NewSubjectService(subjects, groups, app.Metrics)
	app.Groups = service.NewGroupService(groups, grades, app.Metrics)
	app.Grades = service.NewGradeService(grades, groups, subjects, users, app.Metrics)
	app.Session = service.NewSessionService(service.SessionDeps{
		Provider: app.Provider,
		Users:    users,
		Revoked:  app.Revoked,
		Cache:    app.Cache,
		Mailer:   sender,
		Metrics:  app.Metrics,
		CacheTTL: cfg.SessionCache,
	})
	app.Reconciler = reconcile.New(app.Provider, app.Store, cfg.Reconcile.Concurrency)
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return pgstore.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	case "firestore":
		return fsstore.NewFirestoreStore(ctx, cfg.Store.ProjectID, cfg.Store.CredentialsFile)
	default:
		return sqlitestore.NewSQLiteStore(cfg.Store.SQLitePath)
	}
}

func (a *App) openProvider(ctx context.Context) error {
	idc := a.Config.Identity
	if idc.Driver == "firebase" {
		p, err := firebase.NewFirebaseProvider(ctx, firebase.Config{
			ProjectID:       idc.ProjectID,
			CredentialsFile: idc.CredentialsFile,
			APIKey:          idc.APIKey,
		})
		if err != nil {
			return err
		}
		a.Provider = p
		return nil
	}

	ks, err := keys.Load(keys.Source{Kid: idc.KeyID, PEM: idc.PrivateKeyPEM, B64: idc.PrivateKeyB64})
	if err != nil {
		return err
	}
	secret := idc.ActionSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("ACTION_SECRET not set; generated one for this process, action links will not survive a restart")
	}
	p, err := local.NewLocalProvider(idc.SQLitePath, ks, local.Config{
		Issuer:        idc.Issuer,
		SessionTTL:    idc.SessionTTL,
		ActionTTL:     idc.ActionTTL,
		ActionSecret:  secret,
		ActionBaseURL: idc.ActionBaseURL,
	})
	if err != nil {
		return err
	}
	a.onClose(p.Disconnect)
	a.Provider, a.Keys = p, ks
	return nil
}

func (a *App) onClose(fn func()) { a.closers = append(a.closers, fn) }

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
