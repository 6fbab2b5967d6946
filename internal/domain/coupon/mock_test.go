package coupon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

type mockRepo struct {
	mu      sync.Mutex
	coupons map[int64]*Coupon
	nextID  int64
	err     error
}

func newMockRepo(coupons ...Coupon) *mockRepo {
	m := &mockRepo{coupons: make(map[int64]*Coupon)}
	for i := range coupons {
		c := coupons[i]
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
		m.coupons[c.ID] = &c
	}
	return m
}

func (m *mockRepo) FindByID(_ context.Context, id int64) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.coupons {
		if NormalizeCode(c.Code) == NormalizeCode(code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, c *Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.coupons {
		if NormalizeCode(existing.Code) == NormalizeCode(c.Code) {
			return errors.Wrap(ErrDuplicateCode, "insert")
		}
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, int(m.nextID), time.UTC)
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepo) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.coupons[id]
	if !ok {
		return ErrNotFound
	}
	c.Active = false
	return nil
}

func ptr[T any](v T) *T { return &v }
