package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/seremi/pkg/emi"
	"github.com/samcharles93/seremi/pkg/ser"
)

// Container is one opened file held by the server. Reads take the read
// lock; closing takes the write lock so no read can race the unmapping.
type Container struct {
	ID       string
	Kind     string
	Path     string
	OpenedAt time.Time

	mu     sync.RWMutex
	ser    *ser.File
	emi    *emi.File
	closed bool
}

func (c *Container) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	switch {
	case c.ser != nil:
		return c.ser.Close()
	case c.emi != nil:
		return c.emi.Close()
	}
	return nil
}

// ContainerStore tracks open containers by handle id.
type ContainerStore struct {
	mu         sync.Mutex
	containers map[string]*Container
}

func NewContainerStore() *ContainerStore {
	return &ContainerStore{containers: make(map[string]*Container)}
}

func (s *ContainerStore) add(c *Container) {
	c.ID = uuid.NewString()
	s.mu.Lock()
	s.containers[c.ID] = c
	s.mu.Unlock()
}

func (s *ContainerStore) Get(id string) (*Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[id]
	return c, ok
}

// Remove detaches the container from the store and closes it.
func (s *ContainerStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	c, ok := s.containers[id]
	delete(s.containers, id)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, c.close()
}

// List returns the open containers, oldest first.
func (s *ContainerStore) List() []*Container {
	s.mu.Lock()
	out := make([]*Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

func (s *ContainerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.containers)
}

// CloseAll closes and forgets every container.
func (s *ContainerStore) CloseAll() error {
	s.mu.Lock()
	all := s.containers
	s.containers = make(map[string]*Container)
	s.mu.Unlock()

	var errs []error
	for _, c := range all {
		if err := c.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
