// Package session owns the viewing context: who is logged in, which project
// is open, and the tree, gateway and push channel bound to that project.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/clock"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/orchidnexus/orchid/internal/logging"
	"github.com/orchidnexus/orchid/internal/metrics"
	"github.com/orchidnexus/orchid/internal/notify"
	"github.com/orchidnexus/orchid/internal/repository"
	"github.com/orchidnexus/orchid/internal/tree"
	"go.uber.org/zap"
)

var ErrNotLoggedIn = errors.New("not logged in")

type Deps struct {
	Client *api.Client
	DB     *sql.DB
	// UoW defaults to a SQLite unit of work over DB.
	UoW repository.UnitOfWork
	// Subscriber is nil when live updates are off.
	Subscriber notify.Subscriber
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Session struct {
	client  *api.Client
	uow     repository.UnitOfWork
	creds   repository.CredentialRepo
	notices repository.NoticeRepo
	logger  *zap.Logger
	metrics *metrics.Metrics

	tree  *tree.Tree
	board *notify.Board

	// switchMu serializes project selection. It is never held by the
	// unauthorized hook, which may fire from inside a selection.
	switchMu sync.Mutex

	mu           sync.Mutex
	sub          notify.Subscriber
	cred         *domain.Credential
	gw           *gateway.Gateway
	channel      *notify.Channel
	onExpire     func(error)
	onDisconnect func(error)
}

func New(deps Deps) *Session {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.UoW == nil {
		deps.UoW = repository.NewSQLiteUnitOfWork(deps.DB)
	}
	logger := logging.OrNop(deps.Logger)
	stores := repository.StoresOn(deps.DB)

	s := &Session{
		client:  deps.Client,
		uow:     deps.UoW,
		creds:   stores.Credentials,
		notices: stores.Notices,
		sub:     deps.Subscriber,
		logger:  logger,
		metrics: deps.Metrics,
		tree:    tree.New(deps.Client, logger, deps.Metrics),
		board:   notify.NewBoard(deps.Clock),
	}
	deps.Client.OnUnauthorized(s.expire)
	return s
}

func (s *Session) Tree() *tree.Tree { return s.tree }

func (s *Session) Board() *notify.Board { return s.board }

func (s *Session) Client() *api.Client { return s.client }

// OnExpire registers fn to run after a 401 has torn the session down.
func (s *Session) OnExpire(fn func(error)) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// SetSubscriber enables live updates for later project selections. A nil
// subscriber turns them off; an already open channel is left alone.
func (s *Session) SetSubscriber(sub notify.Subscriber) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// OnDisconnect registers fn to run when the push channel drops.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

func (s *Session) User() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return domain.User{}, false
	}
	return s.cred.User, true
}

// ActiveProjectID is the last selected project, persisted across runs.
func (s *Session) ActiveProjectID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil || s.cred.ActiveProjectID == nil {
		return 0, false
	}
	return *s.cred.ActiveProjectID, true
}

// Gateway returns the mutation gateway bound to the logged-in user's role.
func (s *Session) Gateway() (*gateway.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gw == nil {
		return nil, ErrNotLoggedIn
	}
	return s.gw, nil
}

// Live reports whether a push channel is currently open.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel != nil && s.channel.State() == notify.StateOpen
}

// Login exchanges credentials for a token, resolves the user and persists
// both. Any previous viewing context is left first.
func (s *Session) Login(ctx context.Context, email, password string) (domain.User, error) {
	s.Leave()

	tok, err := s.client.Login(ctx, email, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	s.client.SetToken(tok.AccessToken)
	u, err := s.client.Me(ctx)
	if err != nil {
		s.client.SetToken("")
		return domain.User{}, fmt.Errorf("login: resolve user: %w", err)
	}
	if !u.Role.Valid() {
		s.client.SetToken("")
		return domain.User{}, fmt.Errorf("login: backend returned unknown role %q", u.Role)
	}

	cred := &domain.Credential{APIURL: s.client.BaseURL(), Token: tok.AccessToken, User: u}
	if err := s.creds.Save(ctx, cred); err != nil {
		s.client.SetToken("")
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	s.install(cred)
	s.logger.Info("logged in", zap.Int("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Restore resumes the stored login without contacting the backend. A token
// issued by a different backend is ignored.
func (s *Session) Restore(ctx context.Context) (domain.User, error) {
	cred, err := s.creds.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrNotLoggedIn
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("restore session: %w", err)
	}
	if cred.APIURL != s.client.BaseURL() {
		s.logger.Debug("stored credential belongs to another backend",
			zap.String("stored", cred.APIURL), zap.String("configured", s.client.BaseURL()))
		return domain.User{}, ErrNotLoggedIn
	}
	s.client.SetToken(cred.Token)
	s.install(cred)
	return cred.User, nil
}

func (s *Session) install(cred *domain.Credential) {
	gw := gateway.New(s.client, s.tree, cred.User.Role, s.logger, s.metrics)
	s.mu.Lock()
	s.cred = cred
	s.gw = gw
	s.mu.Unlock()
}

// SelectProject switches the viewing context to projectID: the old channel
// is closed and the old tree disposed before the new tree is loaded, and the
// push channel, when enabled, is opened last. A push channel that fails to
// open is reported through OnDisconnect; the project stays selected.
func (s *Session) SelectProject(ctx context.Context, projectID int) (domain.Project, error) {
	if _, ok := s.User(); !ok {
		return domain.Project{}, ErrNotLoggedIn
	}
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.closeChannel()
	s.board.Clear()
	p, err := s.tree.Load(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}

	if err := s.creds.SetActiveProject(ctx, &projectID); err != nil {
		s.logger.Warn("persisting active project failed", zap.Int("project_id", projectID), zap.Error(err))
	}
	s.mu.Lock()
	if s.cred != nil {
		s.cred.ActiveProjectID = &projectID
	}
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		s.openChannel(ctx, projectID, sub)
	}
	return p, nil
}

func (s *Session) openChannel(ctx context.Context, projectID int, sub notify.Subscriber) {
	ch, err := notify.Open(ctx, projectID, notify.Deps{
		Subscriber:   sub,
		Reconciler:   s.tree,
		Board:        s.board,
		Sink:         s.notices,
		Logger:       s.logger,
		Metrics:      s.metrics,
		OnDisconnect: s.disconnected,
	})
	if err != nil {
		s.logger.Warn("live updates unavailable", zap.Int("project_id", projectID), zap.Error(err))
		s.disconnected(err)
		return
	}

	s.mu.Lock()
	if s.cred == nil || s.tree.ProjectID() != projectID {
		s.mu.Unlock()
		_ = ch.Close()
		return
	}
	s.channel = ch
	s.mu.Unlock()
}

func (s *Session) disconnected(err error) {
	s.mu.Lock()
	fn := s.onDisconnect
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Session) detachChannel() *notify.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channel
	s.channel = nil
	return ch
}

func (s *Session) closeChannel() {
	if ch := s.detachChannel(); ch != nil {
		_ = ch.Close()
	}
}

// Leave closes the push channel and evicts the cached tree. The login is
// kept.
func (s *Session) Leave() {
	s.closeChannel()
	s.board.Clear()
	s.tree.Dispose()
}

// Forget leaves the viewing context and clears the remembered project when
// projectID is the one selected, as after the project was deleted.
func (s *Session) Forget(ctx context.Context, projectID int) error {
	if pid, ok := s.ActiveProjectID(); !ok || pid != projectID {
		return nil
	}
	s.Leave()
	s.mu.Lock()
	if s.cred != nil {
		s.cred.ActiveProjectID = nil
	}
	s.mu.Unlock()
	if err := s.creds.SetActiveProject(ctx, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("forget project %d: %w", projectID, err)
	}
	return nil
}

// Notices lists the recorded notices of the active project, newest first.
func (s *Session) Notices(ctx context.Context, limit int) ([]domain.Notice, error) {
	pid, ok := s.ActiveProjectID()
	if !ok {
		return nil, tree.ErrNoActiveProject
	}
	return s.notices.List(ctx, pid, limit)
}

// MarkNoticesSeen flags the active project's notices as seen.
func (s *Session) MarkNoticesSeen(ctx context.Context) error {
	pid, ok := s.ActiveProjectID()
	if !ok {
		return tree.ErrNoActiveProject
	}
	_, err := s.notices.MarkSeen(ctx, pid)
	return err
}

// Logout leaves the viewing context and deletes the stored credential and
// notice log together.
func (s *Session) Logout(ctx context.Context) error {
	return s.teardown(ctx, true)
}

// expire is the unauthorized hook. It may run on a goroutine owned by the
// push channel, so it stops the channel without waiting on it.
func (s *Session) expire(cause error) {
	s.mu.Lock()
	loggedIn := s.cred != nil
	fn := s.onExpire
	s.mu.Unlock()

	if err := s.teardown(context.Background(), false); err != nil {
		s.logger.Warn("clearing expired session failed", zap.Error(err))
	}
	if loggedIn {
		s.logger.Info("session expired", zap.Error(cause))
		if fn != nil {
			fn(cause)
		}
	}
}

func (s *Session) teardown(ctx context.Context, wait bool) error {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.cred = nil
	s.gw = nil
	s.mu.Unlock()

	if ch != nil {
		if wait {
			_ = ch.Close()
		} else {
			_ = ch.Stop()
		}
	}
	s.board.Clear()
	s.tree.Dispose()
	s.client.SetToken("")

	err := s.uow.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		if err := st.Credentials.Delete(ctx); err != nil {
			return err
		}
		return st.Notices.DeleteAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	return nil
}
