package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/xuri/excelize/v2"
)

func TestParseCatalogRows(t *testing.T) {
	header := []string{"Task Question", "task_answer", "Company-Tier", "employee_level", "type", "subtype", "notes"}

	tests := []struct {
		name    string
		rows    [][]string
		want    int
		wantErr string
	}{
		{
			name: "normalizes classifiers",
			rows: [][]string{
				header,
				{"Что такое p-value?", "ответ", "Tier 1", "Junior", "Product Analyst", "statistics", "ignored"},
				{"", "", "", "", "", "", ""},
				{"Как работает JOIN?", "", "tier-2", "middle", "data_analyst", "SQL"},
			},
			want: 2,
		},
		{
			name:    "missing column",
			rows:    [][]string{{"question", "company_tier", "employee_level", "type"}},
			wantErr: "missing required column for topic",
		},
		{
			name:    "bad tier",
			rows:    [][]string{header, {"q", "", "tier3", "junior", "data_analyst", "sql"}},
			wantErr: "row 2: company_tier",
		},
		{
			name:    "bad topic",
			rows:    [][]string{header, {"q", "", "tier1", "junior", "data_analyst", "sql"}, {"q2", "", "tier1", "junior", "data_analyst", "excel"}},
			wantErr: "row 3: unknown subtype",
		},
		{
			name:    "empty question",
			rows:    [][]string{header, {"", "answer", "tier1", "junior", "data_analyst", "sql"}},
			wantErr: "question is empty",
		},
		{
			name:    "only headers",
			rows:    [][]string{header},
			wantErr: "no data rows",
		},
		{
			name:    "no rows",
			rows:    nil,
			wantErr: "no header row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := ParseCatalogRows(tt.rows)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCatalogRows failed: %v", err)
			}
			if len(tasks) != tt.want {
				t.Fatalf("Expected %d tasks, got %d", tt.want, len(tasks))
			}

			first := tasks[0]
			if first.CompanyTier != "tier1" || first.ExperienceLevel != "junior" || first.Specialization != pa {
				t.Errorf("Classifiers not normalized: %+v", first)
			}
			if tasks[1].CompanyTier != "tier2" || tasks[1].Topic != "sql" {
				t.Errorf("Second row not normalized: %+v", tasks[1])
			}
		})
	}
}

func TestReadCatalogSheet(t *testing.T) {
	dir := t.TempDir()

	xlsxPath := filepath.Join(dir, "tasks.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"task_question", "task_answer", "company_tier", "employee_level", "type", "subtype"},
		{"Что такое A/A тест?", "Проверка системы сплитования", "tier1", "middle", pa, "ab_testing"},
		{"Что такое декоратор?", "", "tier2", "junior", da, "python"},
	}
	for i, row := range rows {
		if err := f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}
	if err := f.SaveAs(xlsxPath); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	f.Close()

	csvPath := filepath.Join(dir, "tasks.csv")
	csvContent := "question,answer,tier,level,role,topic\n\"Что такое ROC-AUC?\",,tier1,senior,data_analyst,statistics\n"
	if err := os.WriteFile(csvPath, []byte(csvContent), 0o644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}

	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{xlsxPath, 2, false},
		{csvPath, 1, false},
		{filepath.Join(dir, "tasks.json"), 0, true},
		{filepath.Join(dir, "missing.xlsx"), 0, true},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			tasks, err := ReadCatalogSheet(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadCatalogSheet error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tasks) != tt.want {
				t.Errorf("Expected %d tasks, got %d", tt.want, len(tasks))
			}
			for _, task := range tasks {
				if task.Source != filepath.Base(tt.path) {
					t.Errorf("Expected source %s, got %s", filepath.Base(tt.path), task.Source)
				}
			}
		})
	}
}

func TestImportTasks_SkipsDuplicates(t *testing.T) {
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

	existing := catalogTask(0, "tier1", "junior", pa, "statistics")
	if _, err := repo.InsertTask(ctx, existing); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	fresh := catalogTask(0, "tier1", "junior", pa, "sql")
	batch := []models.Task{existing, fresh, fresh}

	added, skipped, err := ImportTasks(ctx, repo, batch)
	if err != nil {
		t.Fatalf("ImportTasks failed: %v", err)
	}
	if added != 1 || skipped != 2 {
		t.Errorf("Expected 1 added and 2 skipped, got %d and %d", added, skipped)
	}

	// Re-running the same import adds nothing
	added, skipped, err = ImportTasks(ctx, repo, batch)
	if err != nil {
		t.Fatalf("ImportTasks failed: %v", err)
	}
	if added != 0 || skipped != 3 {
		t.Errorf("Expected 0 added and 3 skipped on rerun, got %d and %d", added, skipped)
	}
}
