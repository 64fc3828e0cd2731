package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"gopkg.in/yaml.v3"
)

// TaskQuery filters catalog tasks; empty fields are unconstrained
type TaskQuery struct {
	CompanyTier     string
	ExperienceLevel string
	Specialization  string
	Topic           string
}

func (q TaskQuery) matches(t models.Task) bool {
	return (q.CompanyTier == "" || q.CompanyTier == t.CompanyTier) &&
		(q.ExperienceLevel == "" || q.ExperienceLevel == t.ExperienceLevel) &&
		(q.Specialization == "" || q.Specialization == t.Specialization) &&
		(q.Topic == "" || q.Topic == t.Topic)
}

// TaskRepository is the read contract of the question catalog
type TaskRepository interface {
	QueryTasks(ctx context.Context, q TaskQuery) ([]models.Task, error)
}

// SQLTaskRepository reads the catalog from the tasks table (MySQL or SQLite)
type SQLTaskRepository struct {
	db *database.DB
}

// NewSQLTaskRepository creates a catalog repository over a SQL database
func NewSQLTaskRepository(db *database.DB) *SQLTaskRepository {
	return &SQLTaskRepository{db: db}
}

const taskColumns = `task_id, task_question, COALESCE(task_answer, ''), company_tier, employee_level, type, subtype, COALESCE(source, '')`

// QueryTasks returns every task matching the non-empty query fields
func (r *SQLTaskRepository) QueryTasks(ctx context.Context, q TaskQuery) ([]models.Task, error) {
	var conds []string
	var args []any
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	add("company_tier", q.CompanyTier)
	add("employee_level", q.ExperienceLevel)
	add("type", q.Specialization)
	add("subtype", q.Topic)

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Question, &t.ReferenceAnswer, &t.CompanyTier, &t.ExperienceLevel, &t.Specialization, &t.Topic, &t.Source); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

// QuestionExists reports whether a task with the exact question text is stored
func (r *SQLTaskRepository) QuestionExists(ctx context.Context, question string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE task_question = ?`, question).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check question: %w", err)
	}
	return count > 0, nil
}

// InsertTask stores a task and returns its generated id
func (r *SQLTaskRepository) InsertTask(ctx context.Context, t models.Task) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (task_question, task_answer, company_tier, employee_level, type, subtype, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Question, t.ReferenceAnswer, t.CompanyTier, t.ExperienceLevel, t.Specialization, t.Topic, t.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read task id: %w", err)
	}
	return id, nil
}

// MemoryTaskRepository holds the catalog in memory
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks []models.Task
}

// NewMemoryTaskRepository creates a repository over a fixed task list
func NewMemoryTaskRepository(tasks []models.Task) *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: append([]models.Task(nil), tasks...)}
}

// catalogFile is the YAML layout of a seed catalog
type catalogFile struct {
	Tasks []models.Task `yaml:"tasks"`
}

// LoadMemoryTaskRepository reads a YAML catalog seed file
func LoadMemoryTaskRepository(path string) (*MemoryTaskRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalogYAML(data)
}

// ParseCatalogYAML builds a repository from YAML catalog content.
// Tasks without an id get sequential ids after the highest explicit one.
func ParseCatalogYAML(data []byte) (*MemoryTaskRepository, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	var maxID int64
	seen := make(map[int64]bool, len(file.Tasks))
	for i := range file.Tasks {
		normalizeCatalogTask(&file.Tasks[i])
		t := file.Tasks[i]
		if err := validateCatalogTask(t); err != nil {
			return nil, fmt.Errorf("catalog task #%d: %w", i+1, err)
		}
		if t.ID != 0 {
			if seen[t.ID] {
				return nil, fmt.Errorf("catalog task id %d is duplicated", t.ID)
			}
			seen[t.ID] = true
		}
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	for i := range file.Tasks {
		if file.Tasks[i].ID == 0 {
			maxID++
			file.Tasks[i].ID = maxID
		}
	}

	log.Printf("📚 [CATALOG] Loaded %d tasks from YAML seed", len(file.Tasks))
	return NewMemoryTaskRepository(file.Tasks), nil
}

// QueryTasks returns copies of every task matching the query
func (r *MemoryTaskRepository) QueryTasks(ctx context.Context, q TaskQuery) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Task
	for _, t := range r.tasks {
		if q.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Replace swaps the whole catalog. Sessions already started keep their
// own copies of the tasks they were given.
func (r *MemoryTaskRepository) Replace(tasks []models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append([]models.Task(nil), tasks...)
}

// ReloadFrom re-reads a YAML seed file and replaces the catalog. A file
// that fails to parse leaves the current catalog in place.
func (r *MemoryTaskRepository) ReloadFrom(path string) error {
	fresh, err := LoadMemoryTaskRepository(path)
	if err != nil {
		return err
	}

	fresh.mu.RLock()
	tasks := fresh.tasks
	fresh.mu.RUnlock()

	r.Replace(tasks)
	return nil
}

// Len returns the catalog size
func (r *MemoryTaskRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
