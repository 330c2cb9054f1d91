// Package testserver runs an in-memory users REST API for tests and examples.
package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// SessionCookie is the cookie set by POST /api/session.
const SessionCookie = "fetchx_session"

// User is the resource served under /api/users.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Echo is the body returned by /api/echo.
type Echo struct {
	Method string              `json:"method"`
	Path   string              `json:"path"`
	Query  map[string][]string `json:"query"`
	Header map[string][]string `json:"header"`
	Body   string              `json:"body"`
}

// Server is a users API backed by a slice. It records every request it receives.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    []User
	nextID   int
	requests map[string]int
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{requests: make(map[string]int)}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.count)

	r.Route("/api", func(r chi.Router) {
		r.Get("/does-not-exist", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		r.Get("/me", s.handleMe)
		r.HandleFunc("/echo", s.handleEcho)
		r.Post("/session", s.handleStartSession)
		r.Get("/session", s.handleSession)
		r.Get("/plain-users", s.handlePlainUsers)
		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)
		r.Patch("/users/{id}", s.handleUpdateUser)
		r.Put("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)
	})

	s.Server = httptest.NewServer(r)

	return s
}

// APIURL returns the base URL of the API namespace.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// Seed adds n users named "User 1" to "User n".
func (s *Server) Seed(n int) []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]User, 0, n)
	for i := 1; i <= n; i++ {
		created = append(created, s.addLocked(fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i)))
	}

	return created
}

// Users returns a copy of the stored users.
func (s *Server) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]User(nil), s.users...)
}

// Requests returns how many requests reached path, e.g. "GET /api/users".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[route]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) addLocked(name, email string) User {
	s.nextID++
	user := User{ID: strconv.Itoa(s.nextID), Name: name, Email: email}
	s.users = append(s.users, user)

	return user
}

func (s *Server) findLocked(id string) int {
	for i, user := range s.users {
		if user.ID == id {
			return i
		}
	}

	return -1
}

// filtered applies the name filter and, when both limit and skip are present, the page window.
func (s *Server) filtered(r *http.Request) ([]User, int) {
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		if name := query.Get("name"); name != "" && !strings.Contains(user.Name, name) {
			continue
		}

		users = append(users, user)
	}

	total := len(users)

	if query.Has("limit") && query.Has("skip") {
		limit, _ := strconv.Atoi(query.Get("limit"))
		skip, _ := strconv.Atoi(query.Get("skip"))

		start := min(max(skip, 0), len(users))
		end := min(start+max(limit, 0), len(users))
		users = users[start:end]
	}

	return users, total
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, total := s.filtered(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"users":      users,
		"totalCount": total,
	})
}

func (s *Server) handlePlainUsers(w http.ResponseWriter, r *http.Request) {
	users, _ := s.filtered(r)

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var input User
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})

		return
	}

	s.mu.Lock()
	user := s.addLocked(input.Name, input.Email)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.findLocked(chi.URLParam(r, "id"))

	var user User
	if idx >= 0 {
		user = s.users[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})

		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser serves both PATCH and PUT; fields absent from the body are kept.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var input map[string]string
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})

		return
	}

	s.mu.Lock()
	idx := s.findLocked(chi.URLParam(r, "id"))

	var user User
	if idx >= 0 {
		if name, ok := input["name"]; ok {
			s.users[idx].Name = name
		}

		if email, ok := input["email"]; ok {
			s.users[idx].Email = email
		}

		user = s.users[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})

		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.findLocked(chi.URLParam(r, "id"))
	if idx >= 0 {
		s.users = append(s.users[:idx], s.users[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": r.Header.Get("Authorization")})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	writeJSON(w, http.StatusOK, Echo{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   string(body),
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "s3cr3t", Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := ""
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		session = cookie.Value
	}

	writeJSON(w, http.StatusOK, map[string]string{"session": session})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
