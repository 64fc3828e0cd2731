package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/xuri/excelize/v2"
)

// catalogColumns maps normalized sheet headers onto task fields
var catalogColumns = map[string]string{
	"task_question":    "question",
	"question":         "question",
	"task_answer":      "answer",
	"answer":           "answer",
	"company_tier":     "company_tier",
	"tier":             "company_tier",
	"employee_level":   "experience_level",
	"experience_level": "experience_level",
	"level":            "experience_level",
	"type":             "specialization",
	"specialization":   "specialization",
	"role":             "specialization",
	"subtype":          "topic",
	"topic":            "topic",
	"source":           "source",
}

var requiredCatalogColumns = []string{"question", "company_tier", "experience_level", "specialization", "topic"}

// CatalogWriter is the write side of the SQL catalog used by imports
type CatalogWriter interface {
	QuestionExists(ctx context.Context, question string) (bool, error)
	InsertTask(ctx context.Context, t models.Task) (int64, error)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func normalizeClassifier(v string) string {
	v = normalizeHeader(v)
	switch v {
	case "tier_1":
		return models.CompanyTier1
	case "tier_2":
		return models.CompanyTier2
	}
	return v
}

func knownID(items []models.DictionaryItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func normalizeCatalogTask(task *models.Task) {
	task.Question = strings.TrimSpace(task.Question)
	task.CompanyTier = normalizeClassifier(task.CompanyTier)
	task.ExperienceLevel = normalizeClassifier(task.ExperienceLevel)
	task.Specialization = normalizeClassifier(task.Specialization)
	task.Topic = normalizeClassifier(task.Topic)
}

// validateCatalogTask checks that a stored task carries a question and a
// concrete classification. Topic random is a selection mode, not a topic.
func validateCatalogTask(task models.Task) error {
	switch {
	case task.Question == "":
		return fmt.Errorf("question is empty")
	case !knownID(models.CompanyTiers, task.CompanyTier):
		return fmt.Errorf("company_tier must be tier1 or tier2, got %q", task.CompanyTier)
	case !knownID(models.ExperienceLevels, task.ExperienceLevel):
		return fmt.Errorf("employee_level must be junior, middle or senior, got %q", task.ExperienceLevel)
	case !knownID(models.Specializations, task.Specialization):
		return fmt.Errorf("type must be product_analyst or data_analyst, got %q", task.Specialization)
	case task.Topic == models.TopicRandom || !knownID(models.Topics, task.Topic):
		return fmt.Errorf("unknown subtype %q", task.Topic)
	}
	return nil
}

// ReadCatalogSheet reads catalog rows from an .xlsx workbook (active sheet)
// or a .csv file. The first row holds the headers.
func ReadCatalogSheet(path string) ([]models.Task, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readWorkbookRows(path)
	case ".csv":
		rows, err = readCSVRows(path)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q - use .xlsx or .csv", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	tasks, err := ParseCatalogRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for i := range tasks {
		if tasks[i].Source == "" {
			tasks[i].Source = filepath.Base(path)
		}
	}
	return tasks, nil
}

func readWorkbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	// Use active sheet or first sheet
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheetNames[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	return rows, nil
}

// ParseCatalogRows maps a header row plus data rows onto catalog tasks.
// Unknown columns are ignored, blank rows skipped, and every row must carry
// a valid classification.
func ParseCatalogRows(rows [][]string) ([]models.Task, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	fields := make(map[int]string)
	present := make(map[string]bool)
	for i, header := range rows[0] {
		if field, ok := catalogColumns[normalizeHeader(header)]; ok && !present[field] {
			fields[i] = field
			present[field] = true
		}
	}
	for _, field := range requiredCatalogColumns {
		if !present[field] {
			return nil, fmt.Errorf("missing required column for %s", field)
		}
	}

	var tasks []models.Task
	for n, row := range rows[1:] {
		values := make(map[string]string, len(fields))
		for i, field := range fields {
			if i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					values[field] = v
				}
			}
		}
		if len(values) == 0 {
			continue
		}

		// Spreadsheet row number, counting the header
		line := n + 2
		task := models.Task{
			Question:        values["question"],
			ReferenceAnswer: values["answer"],
			CompanyTier:     values["company_tier"],
			ExperienceLevel: values["experience_level"],
			Specialization:  values["specialization"],
			Topic:           values["topic"],
			Source:          values["source"],
		}
		normalizeCatalogTask(&task)
		if err := validateCatalogTask(task); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no data rows found")
	}
	return tasks, nil
}

// ImportTasks inserts tasks whose question text is not stored yet and
// returns how many were added and skipped
func ImportTasks(ctx context.Context, catalog CatalogWriter, tasks []models.Task) (added, skipped int, err error) {
	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if seen[task.Question] {
			skipped++
			continue
		}
		seen[task.Question] = true

		exists, err := catalog.QuestionExists(ctx, task.Question)
		if err != nil {
			return added, skipped, err
		}
		if exists {
			skipped++
			continue
		}
		if _, err := catalog.InsertTask(ctx, task); err != nil {
			return added, skipped, err
		}
		added++
	}

	log.Printf("📚 [CATALOG] Imported %d tasks, skipped %d duplicates", added, skipped)
	return added, skipped, nil
}
