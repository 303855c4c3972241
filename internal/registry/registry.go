// Package registry is the process-wide map of live sessions: id→Session
// plus a secondary name→id index, kept mutually consistent under
// concurrent create/remove/list/get.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/winmux/winmux/internal/config"
	"github.com/winmux/winmux/internal/ptyadapter"
	"github.com/winmux/winmux/internal/session"
)

// ErrMaxSessions is returned by Create when the registry is already at
// configured capacity.
var ErrMaxSessions = fmt.Errorf("registry: maximum session count reached")

// Registry owns every live Session. There is exactly one constructor —
// New — which always takes a *config.Config; earlier revisions of this
// kind of manager in the wild have shipped a config-less constructor
// alongside the real one and then wired the wrong one into the server,
// silently dropping every configured default. WinMux does not repeat
// that mistake.
type Registry struct {
	cfg  *config.Config
	open session.Opener
	log  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
	byName   map[string]string // name -> id
}

// New constructs a Registry. open is injected so tests can run the
// whole create/attach/kill path against a fake PTY; production code
// passes ptyadapter.Open.
func New(cfg *config.Config, open session.Opener, log *slog.Logger) *Registry {
	if open == nil {
		open = ptyadapter.Open
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		open:     open,
		log:      log,
		sessions: make(map[string]*session.Session),
		byName:   make(map[string]string),
	}
}

// CreateParams mirrors protocol.CreateSessionRequest's optional fields,
// one layer removed from the wire format.
type CreateParams struct {
	Name  string
	Shell string
	Cwd   string
	Env   map[string]string
	Cols  int
	Rows  int
}

// Create generates an id, resolves name/shell/cwd defaults against
// configuration, starts the session, and inserts it into both maps.
func (r *Registry) Create(p CreateParams) (*session.Session, error) {
	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, ErrMaxSessions
	}
	r.mu.Unlock()

	id := newSessionID()

	name := p.Name
	if name == "" {
		name = id[:6]
	}
	shell := p.Shell
	if shell == "" {
		shell = r.cfg.DefaultShell
	}
	cwd := p.Cwd
	if cwd == "" {
		cwd = r.cfg.DefaultCwd
	}

	env := buildEnv(p.Env, name)

	sess, err := session.Create(r.open, session.Params{
		ID:    id,
		Name:  name,
		Shell: shell,
		Cwd:   cwd,
		Env:   env,
		Cols:  p.Cols,
		Rows:  p.Rows,
	}, r.log, r.onSessionExit)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.byName[name] = id
	r.mu.Unlock()

	return sess, nil
}

// Get tries id first, then name, per spec §4.6.
func (r *Registry) Get(idOrName string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sess, ok := r.sessions[idOrName]; ok {
		return sess, true
	}
	if id, ok := r.byName[idOrName]; ok {
		if sess, ok := r.sessions[id]; ok {
			return sess, true
		}
	}
	return nil, false
}

// List returns a snapshot of every session's summary, ordered by
// created-at ascending.
func (r *Registry) List() []session.Summary {
	r.mu.RLock()
	summaries := make([]session.Summary, 0, len(r.sessions))
	for _, sess := range r.sessions {
		summaries = append(summaries, sess.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// Remove drops sess from both maps. It does not kill the session; call
// sess.Kill() first if that is what the caller wants.
func (r *Registry) Remove(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sess.ID)
	if id, ok := r.byName[sess.Name]; ok && id == sess.ID {
		delete(r.byName, sess.Name)
	}
}

// onSessionExit is session.Create's onExit callback. The registry keeps
// exited sessions around (so List can still report state="Exited" and a
// warm-attach replay is still possible) rather than removing them here;
// removal is an explicit operator action via Remove, not automatic —
// spec's data model only requires the two maps stay consistent with each
// other, not that exit implies eviction.
func (r *Registry) onSessionExit(sess *session.Session, code int) {
	r.log.Info("session exited", "session", sess.ID, "name", sess.Name, "code", code)
}

// newSessionID produces the 128-bit random id spec §3 calls for,
// rendered as a 32-character compact hex string — a UUIDv4 with its
// dashes stripped, the same pattern used throughout the pack's PTY/
// session managers for exactly this purpose.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func buildEnv(overlay map[string]string, sessionName string) map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range overlay {
		env[k] = v
	}
	env["WMUX"] = "1"
	env["WMUX_SESSION"] = sessionName
	return env
}
