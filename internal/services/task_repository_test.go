package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

func TestParseCatalogYAML(t *testing.T) {
	data := []byte(`
tasks:
  - task_id: 10
    question: "Что такое p-value?"
    answer: "Вероятность получить наблюдаемый результат при верной нулевой гипотезе"
    company_tier: tier1
    experience_level: junior
    specialization: product_analyst
    topic: statistics
  - question: "Как посчитать конверсию в SQL?"
    company_tier: tier2
    experience_level: middle
    specialization: data_analyst
    topic: sql
`)

	repo, err := ParseCatalogYAML(data)
	if err != nil {
		t.Fatalf("ParseCatalogYAML failed: %v", err)
	}
	if repo.Len() != 2 {
		t.Fatalf("Expected 2 tasks, got %d", repo.Len())
	}

	tasks, _ := repo.QueryTasks(context.Background(), TaskQuery{Topic: "sql"})
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 sql task, got %d", len(tasks))
	}
	if tasks[0].ID != 11 {
		t.Errorf("Expected auto-assigned id 11, got %d", tasks[0].ID)
	}
}

// seedTask renders one YAML seed list item; id 0 leaves task_id out
func seedTask(id int, question, topic string) string {
	item := "  - question: \"" + question + "\"\n"
	if id != 0 {
		item += fmt.Sprintf("    task_id: %d\n", id)
	}
	return item +
		"    company_tier: tier1\n" +
		"    experience_level: junior\n" +
		"    specialization: data_analyst\n" +
		"    topic: " + topic + "\n"
}

func TestParseCatalogYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "tasks: [oops"},
		{"empty question", "tasks:\n  - topic: sql\n"},
		{"duplicate id", "tasks:\n" + seedTask(1, "a", "sql") + seedTask(1, "b", "sql")},
		{"random topic", "tasks:\n" + seedTask(0, "a", "random")},
		{"unknown topic", "tasks:\n" + seedTask(0, "a", "excel")},
		{"misspelled tier", "tasks:\n  - question: a\n    company_tier: tier3\n    experience_level: junior\n    specialization: data_analyst\n    topic: sql\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalogYAML([]byte(tt.data)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestSQLTaskRepository(t *testing.T) {
	db, err := database.New("sqlite://" + filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	repo := NewSQLTaskRepository(db)
	ctx := context.Background()

	seed := []models.Task{
		catalogTask(0, "tier1", "junior", pa, "statistics"),
		catalogTask(0, "tier1", "junior", pa, "sql"),
		catalogTask(0, "tier2", "senior", da, "python"),
	}
	seed[1].Question = "Напишите запрос для retention"
	seed[2].Question = "Что такое генератор?"
	seed[2].ReferenceAnswer = ""

	for _, task := range seed {
		id, err := repo.InsertTask(ctx, task)
		if err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
		if id <= 0 {
			t.Errorf("Expected positive id, got %d", id)
		}
	}

	exists, err := repo.QuestionExists(ctx, "Что такое генератор?")
	if err != nil || !exists {
		t.Errorf("Expected question to exist, got %v (err: %v)", exists, err)
	}
	exists, _ = repo.QuestionExists(ctx, "unknown")
	if exists {
		t.Error("Expected unknown question to be absent")
	}

	tests := []struct {
		name  string
		query TaskQuery
		want  int
	}{
		{"all", TaskQuery{}, 3},
		{"tier and level", TaskQuery{CompanyTier: "tier1", ExperienceLevel: "junior"}, 2},
		{"full", TaskQuery{CompanyTier: "tier1", ExperienceLevel: "junior", Specialization: pa, Topic: "sql"}, 1},
		{"specialization", TaskQuery{Specialization: da}, 1},
		{"none", TaskQuery{Topic: "probability"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := repo.QueryTasks(ctx, tt.query)
			if err != nil {
				t.Fatalf("QueryTasks failed: %v", err)
			}
			if len(tasks) != tt.want {
				t.Errorf("Expected %d tasks, got %d", tt.want, len(tasks))
			}
			for _, task := range tasks {
				if !tt.query.matches(task) {
					t.Errorf("Task %d does not match query: %+v", task.ID, task)
				}
			}
		})
	}
}

func TestMemoryTaskRepository_ReloadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write catalog: %v", err)
		}
	}

	write("tasks:\n" + seedTask(0, "first", "sql"))
	repo, err := LoadMemoryTaskRepository(path)
	if err != nil {
		t.Fatalf("LoadMemoryTaskRepository failed: %v", err)
	}
	if repo.Len() != 1 {
		t.Fatalf("Expected 1 task, got %d", repo.Len())
	}

	write("tasks:\n" + seedTask(0, "first", "sql") + seedTask(0, "second", "sql"))
	if err := repo.ReloadFrom(path); err != nil {
		t.Fatalf("ReloadFrom failed: %v", err)
	}
	if repo.Len() != 2 {
		t.Errorf("Expected 2 tasks after reload, got %d", repo.Len())
	}

	// A seed that names the random mix as a topic is rejected
	write("tasks:\n" + seedTask(0, "third", "random"))
	if err := repo.ReloadFrom(path); err == nil {
		t.Error("Expected ReloadFrom to reject topic random")
	}
	if repo.Len() != 2 {
		t.Errorf("Expected the rejected seed to keep 2 tasks, got %d", repo.Len())
	}

	// A broken file keeps the previous catalog
	write("tasks: [")
	if err := repo.ReloadFrom(path); err == nil {
		t.Error("Expected ReloadFrom to fail on malformed YAML")
	}
	tasks, _ := repo.QueryTasks(context.Background(), TaskQuery{Topic: "sql"})
	if len(tasks) != 2 {
		t.Errorf("Expected the previous 2 tasks to survive, got %d", len(tasks))
	}
}
