package github

import (
	"context"
	"strings"
	"time"

	"github.com/taskswarm/supervisor/internal/core"
)

// PortAdapter implements core.GitHubClient by translating between the
// domain port's types and this package's gh-CLI-shaped Client and
// ChecksWaiter. The Client predates the core port and speaks in plain
// strings/local structs (PR state as a string, PullRequest without
// nested branch refs); PortAdapter is the seam that lets runner,
// scheduler and vcs depend only on core.GitHubClient.
type PortAdapter struct {
	client *Client
	checks *ChecksWaiter
}

// NewPortAdapter wraps an existing Client as a core.GitHubClient.
func NewPortAdapter(client *Client) *PortAdapter {
	return &PortAdapter{client: client, checks: NewChecksWaiter(client)}
}

var _ core.GitHubClient = (*PortAdapter)(nil)

func (a *PortAdapter) GetRepo(ctx context.Context) (*core.RepoInfo, error) {
	return a.client.GetRepo(ctx)
}

func (a *PortAdapter) GetDefaultBranch(ctx context.Context) (string, error) {
	return a.client.GetDefaultBranch(ctx)
}

func (a *PortAdapter) CreatePR(ctx context.Context, opts core.CreatePROptions) (*core.PullRequest, error) {
	pr, err := a.client.CreatePR(ctx, PRCreateOptions{
		Title:     opts.Title,
		Body:      opts.Body,
		Base:      opts.Base,
		Head:      opts.Head,
		Draft:     opts.Draft,
		Labels:    opts.Labels,
		Reviewers: opts.Assignees,
	})
	if err != nil {
		return nil, err
	}
	return toCorePR(pr), nil
}

func (a *PortAdapter) GetPR(ctx context.Context, number int) (*core.PullRequest, error) {
	pr, err := a.client.GetPR(ctx, number)
	if err != nil {
		return nil, err
	}
	return toCorePR(pr), nil
}

// ListPRs lists PRs by state, then filters client-side on Head/Base and
// caps at Limit — the underlying gh-CLI wrapper only takes a state
// filter, so the richer core.ListPROptions surface is applied here
// rather than duplicating flag-building in Client.
func (a *PortAdapter) ListPRs(ctx context.Context, opts core.ListPROptions) ([]*core.PullRequest, error) {
	state := opts.State
	if state == "" {
		state = "open"
	}
	prs, err := a.client.ListPRs(ctx, state)
	if err != nil {
		return nil, err
	}

	out := make([]*core.PullRequest, 0, len(prs))
	for i := range prs {
		pr := prs[i]
		if opts.Head != "" && pr.HeadRef != opts.Head {
			continue
		}
		if opts.Base != "" && pr.BaseRef != opts.Base {
			continue
		}
		out = append(out, toCorePR(&pr))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (a *PortAdapter) UpdatePR(ctx context.Context, number int, opts core.UpdatePROptions) error {
	local := PRUpdateOptions{AddLabels: opts.Labels}
	if opts.Title != nil {
		local.Title = *opts.Title
	}
	if opts.Body != nil {
		local.Body = *opts.Body
	}
	return a.client.UpdatePR(ctx, number, local)
}

func (a *PortAdapter) MergePR(ctx context.Context, number int, opts core.MergePROptions) error {
	return a.client.MergePR(ctx, number, opts.Method)
}

func (a *PortAdapter) ClosePR(ctx context.Context, number int) error {
	return a.client.ClosePR(ctx, number)
}

func (a *PortAdapter) RequestReview(ctx context.Context, number int, reviewers []string) error {
	return a.client.RequestReview(ctx, number, reviewers)
}

func (a *PortAdapter) AddComment(ctx context.Context, number int, body string) error {
	return a.client.AddComment(ctx, number, body)
}

// GetCheckStatus resolves ref (a branch name) to its open PR and returns
// the aggregated check rollup for it. A ref with no open PR reports an
// empty, non-pending CheckStatus rather than an error: a branch that
// hasn't been published as a PR yet simply has no checks to report.
func (a *PortAdapter) GetCheckStatus(ctx context.Context, ref string) (*core.CheckStatus, error) {
	prNumber, err := a.prNumberForRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if prNumber == 0 {
		return &core.CheckStatus{State: "unknown", UpdatedAt: time.Now()}, nil
	}
	result, err := a.checks.GetChecks(ctx, prNumber)
	if err != nil {
		return nil, err
	}
	return toCoreCheckStatus(result), nil
}

// WaitForChecks polls until ref's PR checks complete or timeout elapses.
func (a *PortAdapter) WaitForChecks(ctx context.Context, ref string, timeout time.Duration) (*core.CheckStatus, error) {
	prNumber, err := a.prNumberForRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if prNumber == 0 {
		return &core.CheckStatus{State: "unknown", UpdatedAt: time.Now()}, nil
	}
	waiter := NewChecksWaiter(a.client).WithTimeout(timeout)
	result, err := waiter.Wait(ctx, prNumber)
	if err != nil {
		return nil, err
	}
	return toCoreCheckStatus(result), nil
}

func (a *PortAdapter) ValidateToken(ctx context.Context) error {
	return a.client.ValidateToken(ctx)
}

func (a *PortAdapter) GetAuthenticatedUser(ctx context.Context) (string, error) {
	return a.client.GetAuthenticatedUser(ctx)
}

func (a *PortAdapter) prNumberForRef(ctx context.Context, ref string) (int, error) {
	prs, err := a.client.ListPRs(ctx, "open")
	if err != nil {
		return 0, err
	}
	for _, pr := range prs {
		if pr.HeadRef == ref {
			return pr.Number, nil
		}
	}
	return 0, nil
}

func toCorePR(pr *PullRequest) *core.PullRequest {
	out := &core.PullRequest{
		Number:    pr.Number,
		Title:     pr.Title,
		Body:      pr.Body,
		State:     pr.State,
		Head:      core.PRBranch{Ref: pr.HeadRef},
		Base:      core.PRBranch{Ref: pr.BaseRef},
		HTMLURL:   pr.URL,
		Draft:     pr.Draft,
		Merged:    strings.EqualFold(pr.State, "merged"),
		CreatedAt: pr.CreatedAt,
		UpdatedAt: pr.UpdatedAt,
	}
	if pr.Mergeable != "" {
		mergeable := strings.EqualFold(pr.Mergeable, "mergeable")
		out.Mergeable = &mergeable
	}
	return out
}

// checksRollupState maps a gh conclusion-derived ChecksResult to the
// failing/pending/success vocabulary spec.md's repair pass reasons
// about, mirroring the FAILURE|ERROR|CANCELLED|TIMED_OUT /
// PENDING|IN_PROGRESS|EXPECTED / SUCCESS|SKIPPED|NEUTRAL rollup.
func checksRollupState(result *ChecksResult) string {
	if !result.AllCompleted {
		return "pending"
	}
	if !result.AllPassed {
		return "failure"
	}
	return "success"
}

func toCoreCheckStatus(result *ChecksResult) *core.CheckStatus {
	out := &core.CheckStatus{
		State:      checksRollupState(result),
		TotalCount: len(result.Checks),
		UpdatedAt:  time.Now(),
	}
	for _, c := range result.Checks {
		status := "completed"
		if c.Status != "completed" {
			status = c.Status
		}
		out.Checks = append(out.Checks, core.Check{
			Name:        c.Name,
			Status:      status,
			Conclusion:  c.Conclusion,
			HTMLURL:     c.URL,
			StartedAt:   c.StartedAt,
			CompletedAt: c.CompletedAt,
		})
		switch {
		case status != "completed":
			out.Pending++
		case c.Conclusion == "" || c.Conclusion == "success" || c.Conclusion == "skipped" || c.Conclusion == "neutral":
			out.Passed++
		default:
			out.Failed++
		}
	}
	return out
}
