package practice

import (
	"context"

	"github.com/soyeahso/billable/internal/domain"
)

// MockRegistry is a test double for Registry.
type MockRegistry struct {
	RegistryName      string
	FindClientFunc    func(ctx context.Context, q ClientQuery) (*domain.Client, error)
	CreateClientFunc  func(ctx context.Context, c domain.Client) (*domain.Client, error)
	FindMattersFunc   func(ctx context.Context, f MatterFilter) ([]domain.Matter, error)
	CreateMatterFunc  func(ctx context.Context, m domain.Matter) (*domain.Matter, error)
	PostTimeEntryFunc func(ctx context.Context, e domain.TimeEntry) (*domain.TimeEntry, error)
}

func (m *MockRegistry) Name() string {
	if m.RegistryName != "" {
		return m.RegistryName
	}
	return "mock"
}

func (m *MockRegistry) FindClient(ctx context.Context, q ClientQuery) (*domain.Client, error) {
	if m.FindClientFunc != nil {
		return m.FindClientFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockRegistry) CreateClient(ctx context.Context, c domain.Client) (*domain.Client, error) {
	if m.CreateClientFunc != nil {
		return m.CreateClientFunc(ctx, c)
	}
	c.ID = "mock-client-1"
	c.Source = domain.SourceReal
	return &c, nil
}

func (m *MockRegistry) FindMatters(ctx context.Context, f MatterFilter) ([]domain.Matter, error) {
	if m.FindMattersFunc != nil {
		return m.FindMattersFunc(ctx, f)
	}
	return nil, nil
}

func (m *MockRegistry) CreateMatter(ctx context.Context, mt domain.Matter) (*domain.Matter, error) {
	if m.CreateMatterFunc != nil {
		return m.CreateMatterFunc(ctx, mt)
	}
	mt.ID = "mock-matter-1"
	mt.Source = domain.SourceReal
	return &mt, nil
}

func (m *MockRegistry) PostTimeEntry(ctx context.Context, e domain.TimeEntry) (*domain.TimeEntry, error) {
	if m.PostTimeEntryFunc != nil {
		return m.PostTimeEntryFunc(ctx, e)
	}
	e.ID = "mock-entry-1"
	e.Source = domain.SourceReal
	return &e, nil
}
