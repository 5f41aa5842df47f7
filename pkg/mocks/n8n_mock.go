package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prodfactory/flowsync/pkg/n8n"
)

// N8NClient is a configurable in-memory fake of n8n.Client. Behavior is
// overridden per test through the function fields; unset fields fall back to
// an in-memory workflow store. Every call is appended to Calls so tests can
// assert on call order, which matters for the two-phase import.
type N8NClient struct {
	mu        sync.Mutex
	workflows map[string]*n8n.Workflow
	nextID    int

	Calls []string

	ListFn       func(ctx context.Context) ([]n8n.Workflow, error)
	GetFn        func(ctx context.Context, id string) (*n8n.Workflow, error)
	CreateFn     func(ctx context.Context, workflow *n8n.Workflow) (*n8n.Workflow, error)
	UpdateFn     func(ctx context.Context, id string, workflow *n8n.Workflow) (*n8n.Workflow, error)
	DeleteFn     func(ctx context.Context, id string) error
	ActivateFn   func(ctx context.Context, id string) error
	DeactivateFn func(ctx context.Context, id string) error
	NodeTypesFn  func(ctx context.Context) ([]string, error)
}

func NewN8NClient() *N8NClient {
	return &N8NClient{
		workflows: make(map[string]*n8n.Workflow),
	}
}

// Seed places a workflow into the fake's store without recording a call.
func (f *N8NClient) Seed(workflow n8n.Workflow) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := workflow
	f.workflows[workflow.ID] = &copied
}

// Stored returns a copy of the stored workflow, or nil.
func (f *N8NClient) Stored(id string) *n8n.Workflow {
	f.mu.Lock()
	defer f.mu.Unlock()

	workflow, ok := f.workflows[id]
	if !ok {
		return nil
	}

	copied := *workflow

	return &copied
}

// CallsOf filters the recorded calls by operation name.
func (f *N8NClient) CallsOf(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	filtered := make([]string, 0)

	for _, call := range f.Calls {
		var recorded, arg string
		if _, err := fmt.Sscanf(call, "%s %s", &recorded, &arg); err == nil && recorded == op {
			filtered = append(filtered, arg)
		}
	}

	return filtered
}

func (f *N8NClient) record(op, arg string) {
	f.Calls = append(f.Calls, fmt.Sprintf("%s %s", op, arg))
}

func (f *N8NClient) List(ctx context.Context) ([]n8n.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list", "-")

	if f.ListFn != nil {
		return f.ListFn(ctx)
	}

	listing := make([]n8n.Workflow, 0, len(f.workflows))
	for _, workflow := range f.workflows {
		listing = append(listing, *workflow)
	}

	return listing, nil
}

func (f *N8NClient) Get(ctx context.Context, id string) (*n8n.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get", id)

	if f.GetFn != nil {
		return f.GetFn(ctx, id)
	}

	workflow, ok := f.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", n8n.ErrNotFound, id)
	}

	copied := *workflow

	return &copied, nil
}

func (f *N8NClient) Create(ctx context.Context, workflow *n8n.Workflow) (*n8n.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", workflow.Name)

	if f.CreateFn != nil {
		return f.CreateFn(ctx, workflow)
	}

	f.nextID++

	created := *workflow
	created.ID = fmt.Sprintf("wf-%d", f.nextID)
	created.Active = false
	f.workflows[created.ID] = &created

	copied := created

	return &copied, nil
}

func (f *N8NClient) Update(ctx context.Context, id string, workflow *n8n.Workflow) (*n8n.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update", id)

	if f.UpdateFn != nil {
		return f.UpdateFn(ctx, id, workflow)
	}

	existing, ok := f.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", n8n.ErrNotFound, id)
	}

	updated := *workflow
	updated.ID = id
	updated.Active = existing.Active
	f.workflows[id] = &updated

	copied := updated

	return &copied, nil
}

func (f *N8NClient) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete", id)

	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, id)
	}

	if _, ok := f.workflows[id]; !ok {
		return fmt.Errorf("%w: %s", n8n.ErrNotFound, id)
	}

	delete(f.workflows, id)

	return nil
}

func (f *N8NClient) Activate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("activate", id)

	if f.ActivateFn != nil {
		return f.ActivateFn(ctx, id)
	}

	workflow, ok := f.workflows[id]
	if !ok {
		return fmt.Errorf("%w: %s", n8n.ErrNotFound, id)
	}

	workflow.Active = true

	return nil
}

func (f *N8NClient) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deactivate", id)

	if f.DeactivateFn != nil {
		return f.DeactivateFn(ctx, id)
	}

	workflow, ok := f.workflows[id]
	if !ok {
		return fmt.Errorf("%w: %s", n8n.ErrNotFound, id)
	}

	workflow.Active = false

	return nil
}

func (f *N8NClient) ListInstalledNodeTypes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("node_types", "-")

	if f.NodeTypesFn != nil {
		return f.NodeTypesFn(ctx)
	}

	return nil, nil
}
