// Package posts owns the post and node-registry collections: id assignment,
// vote ordering, synchronous persistence and change notifications.
package posts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"boltboard/internal/common"
	"boltboard/internal/logging"
	"boltboard/internal/server/events"

	"github.com/asaskevich/EventBus"
)

type Service struct {
	mu     sync.RWMutex
	repo   Repository
	bus    EventBus.Bus
	logger logging.Logger

	posts []*Post
	nodes []*NodeEntry
}

func NewService(repo Repository, bus EventBus.Bus, logger logging.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger.With("component", "posts"),
	}
}

// Restore loads the persisted document into memory. Called once at startup.
func (s *Service) Restore(ctx context.Context) error {
	doc, err := s.repo.Load()
	if err != nil {
		return fmt.Errorf("restoring posts: %w", err)
	}

	s.mu.Lock()
	s.posts = doc.Posts
	s.nodes = doc.Nodes
	s.mu.Unlock()

	s.logger.Info(ctx, "restored state", "posts", len(doc.Posts), "nodes", len(doc.Nodes))
	return nil
}

// List returns all posts ordered by votes descending, ties broken by id
// ascending so the order is deterministic.
func (s *Service) List() []*Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Service) Get(id int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.find(id)
	if p == nil {
		return nil, fmt.Errorf("post %d: %w", id, common.ErrNotFound)
	}
	return p.clone(), nil
}

// Create assigns the next id (max existing + 1, tolerant of gaps), persists
// and publishes the new post.
func (s *Service) Create(username, title, content, signature, pubkey string) (*Post, error) {
	s.mu.Lock()

	var maxID int64
	for _, p := range s.posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	post := &Post{
		ID:        maxID + 1,
		Title:     title,
		Content:   content,
		Username:  username,
		Signature: signature,
		Pubkey:    pubkey,
	}
	s.posts = append(s.posts, post)

	err := s.persist()
	out := post.clone()
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s.publish(out)
	return out, nil
}

// Upvote increments the post's vote count by exactly one. Only the payment
// gate calls this.
func (s *Service) Upvote(id int64) (*Post, error) {
	return s.mutate(id, func(p *Post) { p.Votes++ })
}

// MarkVerified flips the verified flag. Idempotent; the flag never goes
// back to false.
func (s *Service) MarkVerified(id int64) (*Post, error) {
	return s.mutate(id, func(p *Post) { p.Verified = true })
}

// mutate applies fn to the post, persists, then emits the change event.
// Emission happens after persistence and outside the lock so that bus
// subscribers can read back through the service.
func (s *Service) mutate(id int64, fn func(*Post)) (*Post, error) {
	s.mu.Lock()

	post := s.find(id)
	if post == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("post %d: %w", id, common.ErrNotFound)
	}
	fn(post)

	err := s.persist()
	out := post.clone()
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s.publish(out)
	return out, nil
}

// AddNode records a node entry for restart recovery. At most one entry per
// host is retained; a newer entry replaces an older one for the same host.
// The node registry is not broadcast.
func (s *Service) AddNode(entry *NodeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*NodeEntry, 0, len(s.nodes)+1)
	kept = append(kept, entry)
	for _, n := range s.nodes {
		if n.Host != entry.Host {
			kept = append(kept, n)
		}
	}
	s.nodes = kept

	return s.persist()
}

// Nodes returns the persisted node entries, newest first.
func (s *Service) Nodes() []*NodeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*NodeEntry, 0, len(s.nodes))
	for _, n := range s.nodes {
		c := *n
		out = append(out, &c)
	}
	return out
}

func (s *Service) find(id int64) *Post {
	for _, p := range s.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// persist writes the whole document. Callers hold s.mu. There is no
// rollback: a failed write propagates while the in-memory mutation stands.
func (s *Service) persist() error {
	doc := &Document{
		Posts: append([]*Post(nil), s.posts...),
		Nodes: append([]*NodeEntry(nil), s.nodes...),
	}
	if err := s.repo.Save(doc); err != nil {
		return fmt.Errorf("persisting state: %w", err)
	}
	return nil
}

func (s *Service) publish(p *Post) {
	s.bus.Publish(events.TopicPostUpdated, p.clone())
}
