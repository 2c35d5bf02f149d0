package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
)

// FakeRepository is a repository served by FakeGitHub.
type FakeRepository struct {
	Owner       string
	Name        string
	Description string
	Stars       int64
	Files       map[string]string
}

func (r *FakeRepository) fullName() string {
	return r.Owner + "/" + r.Name
}

// FakeGitHub serves the search and zipball endpoints the sync worker uses.
type FakeGitHub struct {
	server *httptest.Server

	mu        sync.Mutex
	repos     map[string]*FakeRepository
	results   map[string][]string
	downloads map[string]int
}

// NewFakeGitHub starts a fake GitHub API server.
func NewFakeGitHub() *FakeGitHub {
	f := &FakeGitHub{
		repos:     make(map[string]*FakeRepository),
		results:   make(map[string][]string),
		downloads: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/search/repositories", f.handleSearch(false))
	r.Get("/search/code", f.handleSearch(true))
	r.Get("/repos/{owner}/{repo}/zipball", f.handleZipball)
	f.server = httptest.NewServer(r)
	return f
}

// URL is the base URL to hand to the GitHub client.
func (f *FakeGitHub) URL() string {
	return f.server.URL
}

// Close stops the server.
func (f *FakeGitHub) Close() {
	f.server.Close()
}

// WithRepository adds or replaces a repository.
func (f *FakeGitHub) WithRepository(repo FakeRepository) *FakeGitHub {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[strings.ToLower(repo.fullName())] = &repo
	return f
}

// WithoutRepository removes a repository so its zipball returns 404.
func (f *FakeGitHub) WithoutRepository(owner, name string) *FakeGitHub {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repos, strings.ToLower(owner+"/"+name))
	return f
}

// WithSearchResult makes every search whose query starts with query return
// the named repositories, in order.
func (f *FakeGitHub) WithSearchResult(query string, fullNames ...string) *FakeGitHub {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = fullNames
	return f
}

// Downloads returns how many times owner/name was downloaded.
func (f *FakeGitHub) Downloads(owner, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[strings.ToLower(owner+"/"+name)]
}

type searchOwner struct {
	Login string `json:"login"`
}

type searchItem struct {
	Name            string      `json:"name"`
	FullName        string      `json:"full_name"`
	HTMLURL         string      `json:"html_url"`
	Owner           searchOwner `json:"owner"`
	Description     string      `json:"description"`
	StargazersCount int64       `json:"stargazers_count"`
	Fork            bool        `json:"fork"`
}

func (f *FakeGitHub) handleSearch(code bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := f.search(r.URL.Query().Get("q"))

		var body any
		if code {
			wrapped := make([]map[string]searchItem, 0, len(items))
			for _, item := range items {
				wrapped = append(wrapped, map[string]searchItem{"repository": item})
			}
			body = map[string]any{"total_count": len(wrapped), "items": wrapped}
		} else {
			body = map[string]any{"total_count": len(items), "items": items}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (f *FakeGitHub) search(q string) []searchItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := []searchItem{}
	for query, names := range f.results {
		if q != query && !strings.HasPrefix(q, query+" ") {
			continue
		}
		for _, name := range names {
			repo, ok := f.repos[strings.ToLower(name)]
			if !ok {
				continue
			}
			items = append(items, searchItem{
				Name:            repo.Name,
				FullName:        repo.fullName(),
				HTMLURL:         "https://github.com/" + repo.fullName(),
				Owner:           searchOwner{Login: repo.Owner},
				Description:     repo.Description,
				StargazersCount: repo.Stars,
			})
		}
	}
	return items
}

func (f *FakeGitHub) handleZipball(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo"))

	f.mu.Lock()
	repo, ok := f.repos[key]
	f.downloads[key]++
	f.mu.Unlock()

	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}

	data, err := Zipball(repo.Owner, repo.Name, repo.Files)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(data)
}

// Zipball packs files under a single wrapping directory named the way
// GitHub names archive roots.
func Zipball(owner, name string, files map[string]string) ([]byte, error) {
	wrapped := archive.Files{}
	root := fmt.Sprintf("%s-%s-5e1f0c2/", owner, name)
	for p, content := range files {
		wrapped[root+p] = []byte(content)
	}
	return archive.Pack(wrapped)
}
