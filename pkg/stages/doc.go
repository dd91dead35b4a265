// Package stages implements the three auraflow stage executors.
//
// Each executor satisfies api.StageExecutor and talks to the outside world
// only through the small collaborator interfaces declared in this package,
// so tests can drive every branch with in-process fakes. The concrete
// collaborators live under pkg/clients.
//
//   - Discovery picks a niche from a topic feed and a completion model.
//   - Production writes a markdown e-book for the chosen topic.
//   - Deployment creates a payment link and publishes a landing page.
package stages
