package workflows

import (
	"go.temporal.io/sdk/worker"
)

// Register adds every workflow and the activities of acts to r.
func Register(r worker.Registry, acts *Activities) {
	r.RegisterWorkflow(DiscoveryWorkflow)
	r.RegisterWorkflow(ScheduledSyncWorkflow)
	r.RegisterWorkflow(RepoSyncWorkflow)
	r.RegisterActivity(acts)
}
