package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/orchidnexus/orchid/internal/domain"
)

// Route keys accepted by Hits and Hold.
const (
	RouteToken      = "POST /token"
	RouteMe         = "GET /users/me"
	RouteProjects   = "GET /projects/"
	RouteProject    = "GET /projects/{id}"
	RouteSummary    = "GET /projects/{id}/summary"
	RouteToggleTask = "PATCH /tasks/{id}/status"
	RouteInventory  = "GET /inventory/"
	RouteLowStock   = "GET /inventory/low-stock-alerts"
	RouteObjectives = "POST /objectives/"
	RouteDistribute = "POST /inventory/distribute"
	RoutePush       = "GET /ws/{id}"
)

type fakeAccount struct {
	password string
	user     domain.User
}

// FakeBackend is an in-process stand-in for the monitoring API. It serves
// login, project reads, objective creation, task toggles, inventory and the
// push endpoint, and records how often each route was hit.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	accounts  map[string]fakeAccount
	tokens    map[string]domain.User
	projects  map[int]domain.Project
	inventory []domain.InventoryRecord
	hits      map[string]int
	holds     map[string]chan struct{}
	push      map[int][]*websocket.Conn
	nextUser  int
	nextID    int

	upgrader websocket.Upgrader
}

func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		accounts: map[string]fakeAccount{},
		tokens:   map[string]domain.User{},
		projects: map[int]domain.Project{},
		hits:     map[string]int{},
		holds:    map[string]chan struct{}{},
		push:     map[int][]*websocket.Conn{},
		nextID:   10000,
	}

	mux := http.NewServeMux()
	f.handle(mux, RouteToken, false, f.serveToken)
	f.handle(mux, RouteMe, true, f.serveMe)
	f.handle(mux, RouteProjects, true, f.serveProjects)
	f.handle(mux, RouteProject, true, f.serveProject)
	f.handle(mux, RouteSummary, true, f.serveSummary)
	f.handle(mux, RouteToggleTask, true, f.serveToggle)
	f.handle(mux, RouteInventory, true, f.serveInventory)
	f.handle(mux, RouteLowStock, true, f.serveLowStock)
	f.handle(mux, RouteObjectives, true, f.serveCreateObjective)
	f.handle(mux, RouteDistribute, true, f.serveDistribute)
	f.handle(mux, RoutePush, false, f.servePush)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeBackend) URL() string { return f.Server.URL }

func (f *FakeBackend) Close() {
	f.mu.Lock()
	for _, conns := range f.push {
		for _, c := range conns {
			c.Close()
		}
	}
	f.push = map[int][]*websocket.Conn{}
	for route, ch := range f.holds {
		close(ch)
		delete(f.holds, route)
	}
	f.mu.Unlock()
	f.Server.Close()
}

// AddUser registers an account and returns its user record.
func (f *FakeBackend) AddUser(email, password string, role domain.Role) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUser++
	u := domain.User{ID: f.nextUser, Email: email, Role: role}
	f.accounts[email] = fakeAccount{password: password, user: u}
	return u
}

func (f *FakeBackend) PutProject(p domain.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
}

func (f *FakeBackend) SetInventory(records ...domain.InventoryRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventory = records
}

// ExpireTokens makes every issued token answer 401.
func (f *FakeBackend) ExpireTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = map[string]domain.User{}
}

func (f *FakeBackend) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// Hold blocks requests on route until the returned release is called. The
// hit is counted before the request blocks.
func (f *FakeBackend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[route] = ch
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.holds[route] == ch {
			delete(f.holds, route)
			close(ch)
		}
	}
}

// PushListeners reports how many push connections are open for a project.
func (f *FakeBackend) PushListeners(projectID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.push[projectID])
}

// Notify sends a notification frame to every push listener of the project.
func (f *FakeBackend) Notify(projectID int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.push[projectID] {
		if err := c.WriteJSON(map[string]string{"type": "notification", "message": message}); err != nil {
			return fmt.Errorf("push to project %d: %w", projectID, err)
		}
	}
	return nil
}

// DropPush closes every push connection of the project from the server side.
func (f *FakeBackend) DropPush(projectID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.push[projectID] {
		c.Close()
	}
	delete(f.push, projectID)
}

func (f *FakeBackend) handle(mux *http.ServeMux, route string, authed bool, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[route]++
		hold := f.holds[route]
		f.mu.Unlock()
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if authed && !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		h(w, r)
	})
}

func (f *FakeBackend) authorized(r *http.Request) bool {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[tok]
	return ok
}

func (f *FakeBackend) userFor(r *http.Request) domain.User {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[tok]
}

func (f *FakeBackend) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	email := r.PostForm.Get("username")
	f.mu.Lock()
	acct, ok := f.accounts[email]
	if !ok || acct.password != r.PostForm.Get("password") {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		return
	}
	tok := fmt.Sprintf("tok-%d-%d", acct.user.ID, len(f.tokens)+1)
	f.tokens[tok] = acct.user
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func (f *FakeBackend) serveMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.userFor(r))
}

func (f *FakeBackend) serveProjects(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, domain.Project{ID: p.ID, Name: p.Name, Objectives: []domain.Objective{}})
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) lookup(w http.ResponseWriter, r *http.Request) (domain.Project, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid id"})
		return domain.Project{}, false
	}
	f.mu.Lock()
	p, ok := f.projects[id]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Project not found"})
	}
	return p, ok
}

func (f *FakeBackend) serveProject(w http.ResponseWriter, r *http.Request) {
	if p, ok := f.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (f *FakeBackend) serveSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := f.lookup(w, r)
	if !ok {
		return
	}
	var s domain.ProjectSummary
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			for _, t := range a.Tasks {
				s.TotalTasks++
				if t.Status == domain.TaskComplete {
					s.CompletedTasks++
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, s)
}

func (f *FakeBackend) serveToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid id"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for pid, p := range f.projects {
		for oi := range p.Objectives {
			for ai := range p.Objectives[oi].Activities {
				tasks := p.Objectives[oi].Activities[ai].Tasks
				for ti := range tasks {
					if tasks[ti].ID == id {
						tasks[ti].Status = tasks[ti].Status.Toggle()
						f.projects[pid] = p
						writeJSON(w, http.StatusOK, tasks[ti])
						return
					}
				}
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
}

func (f *FakeBackend) serveInventory(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := append([]domain.InventoryRecord{}, f.inventory...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) serveLowStock(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := []domain.InventoryRecord{}
	for _, rec := range f.inventory {
		if rec.LowStockThreshold > 0 && rec.Quantity <= rec.LowStockThreshold {
			out = append(out, rec)
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) serveCreateObjective(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		ProjectID int    `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
			{"loc": []string{"body", "name"}, "msg": "field required"},
		}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[body.ProjectID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Project not found"})
		return
	}
	f.nextID++
	o := domain.Objective{ID: f.nextID, Name: body.Name, Activities: []domain.Activity{}}
	p.Objectives = append(p.Objectives, o)
	f.projects[p.ID] = p
	writeJSON(w, http.StatusOK, o)
}

// serveDistribute enforces the stock floor the client leaves to the server.
func (f *FakeBackend) serveDistribute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID     int `json:"item_id"`
		LocationID int `json:"location_id"`
		Quantity   int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.inventory {
		if rec.ItemID != body.ItemID || rec.LocationID != body.LocationID {
			continue
		}
		if rec.Quantity < body.Quantity {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Insufficient stock"})
			return
		}
		f.inventory[i].Quantity -= body.Quantity
		writeJSON(w, http.StatusOK, f.inventory[i])
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Inventory record not found"})
}

func (f *FakeBackend) servePush(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.push[id] = append(f.push[id], conn)
	f.mu.Unlock()

	// Drain until the client goes away so close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.mu.Lock()
	conns := f.push[id]
	for i, c := range conns {
		if c == conn {
			f.push[id] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
