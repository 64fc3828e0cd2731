package services

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

// MaxTasksPerSession caps the number of questions in one interview
const MaxTasksPerSession = 3

// TaskSelector draws a bounded, deduplicated set of tasks for a session
type TaskSelector struct {
	repo TaskRepository

	mu  sync.Mutex // guards rng; *rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewTaskSelector creates a selector. rng may be nil to use the global source.
func NewTaskSelector(repo TaskRepository, rng *rand.Rand) *TaskSelector {
	return &TaskSelector{repo: repo, rng: rng}
}

// Select returns up to MaxTasksPerSession tasks matching the criteria.
// A random-topic request with fewer than MaxTasksPerSession matches is
// re-queried on company tier and experience level only.
func (s *TaskSelector) Select(ctx context.Context, criteria models.SelectionCriteria) ([]models.Task, error) {
	primary := TaskQuery{
		CompanyTier:     criteria.CompanyTier,
		ExperienceLevel: criteria.ExperienceLevel,
		Specialization:  criteria.Specialization,
	}
	if !criteria.IsRandomTopic() {
		primary.Topic = criteria.Topic
	}

	matches, err := s.repo.QueryTasks(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}

	if criteria.IsRandomTopic() && len(matches) < MaxTasksPerSession {
		relaxed, err := s.repo.QueryTasks(ctx, TaskQuery{
			CompanyTier:     criteria.CompanyTier,
			ExperienceLevel: criteria.ExperienceLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query catalog: %w", err)
		}
		log.Printf("🔀 [SELECTOR] Random topic matched %d tasks, relaxed query matched %d", len(matches), len(relaxed))
		if len(relaxed) > 0 {
			matches = relaxed
		}
	}

	picked := s.sample(matches, MaxTasksPerSession)
	if len(picked) == 0 {
		return nil, newError(KindInsufficientCatalog, "no tasks found for %s/%s/%s/%s",
			criteria.Specialization, criteria.ExperienceLevel, criteria.CompanyTier, criteria.Topic)
	}
	return picked, nil
}

// sample picks up to n tasks uniformly without replacement, skipping repeated ids
func (s *TaskSelector) sample(tasks []models.Task, n int) []models.Task {
	pool := append([]models.Task(nil), tasks...)
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	out := make([]models.Task, 0, n)
	seen := make(map[int64]bool, n)
	for _, t := range pool {
		if len(out) == n {
			break
		}
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func (s *TaskSelector) shuffle(n int, swap func(i, j int)) {
	if s.rng == nil {
		rand.Shuffle(n, swap)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}
