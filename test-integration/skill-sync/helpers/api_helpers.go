package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/onsi/gomega"

	v1 "github.com/stacklok/toolhive-skill-sync/internal/api/v1"
)

// AdminClient reads the admin HTTP API.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// NewAdminClient returns a client for the admin API at baseURL.
func NewAdminClient(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Get performs a GET and returns the status code and body.
func (c *AdminClient) Get(path string) (int, []byte) {
	resp, err := c.client.Get(c.baseURL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return resp.StatusCode, body
}

// Repository fetches a repository and fails unless it exists.
func (c *AdminClient) Repository(id uuid.UUID) v1.RepositoryResponse {
	status, body := c.Get(fmt.Sprintf("/v1/repositories/%s", id))
	gomega.Expect(status).To(gomega.Equal(http.StatusOK), string(body))

	var repo v1.RepositoryResponse
	gomega.Expect(json.Unmarshal(body, &repo)).To(gomega.Succeed())
	return repo
}

// Pending returns the pending repository IDs.
func (c *AdminClient) Pending() []uuid.UUID {
	status, body := c.Get("/v1/repositories/pending")
	gomega.Expect(status).To(gomega.Equal(http.StatusOK), string(body))

	var pending v1.PendingResponse
	gomega.Expect(json.Unmarshal(body, &pending)).To(gomega.Succeed())
	return pending.RepositoryIDs
}

// SkillsByName indexes a repository's skills.
func SkillsByName(repo v1.RepositoryResponse) map[string]v1.SkillResponse {
	out := make(map[string]v1.SkillResponse, len(repo.Skills))
	for _, s := range repo.Skills {
		out[s.Name] = s
	}
	return out
}
