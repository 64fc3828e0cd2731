package models

// Classification values accepted by the catalog
const (
	TopicRandom = "random"

	CompanyTier1 = "tier1"
	CompanyTier2 = "tier2"

	LevelJunior = "junior"
	LevelMiddle = "middle"
	LevelSenior = "senior"

	SpecializationProductAnalyst = "product_analyst"
	SpecializationDataAnalyst    = "data_analyst"
)

// Task is a catalog question with its classification metadata
type Task struct {
	ID              int64  `json:"task_id" yaml:"task_id"`
	Question        string `json:"task_question" yaml:"question"`
	ReferenceAnswer string `json:"task_answer,omitempty" yaml:"answer"`
	CompanyTier     string `json:"company_tier" yaml:"company_tier"`
	ExperienceLevel string `json:"experience_level" yaml:"experience_level"`
	Specialization  string `json:"specialization" yaml:"specialization"`
	Topic           string `json:"topic" yaml:"topic"`
	Source          string `json:"source,omitempty" yaml:"source"`
}

// SelectionCriteria are the parameters a candidate picks before an interview
type SelectionCriteria struct {
	Specialization  string `json:"specialization"`
	ExperienceLevel string `json:"experience_level"`
	CompanyTier     string `json:"company_tier"`
	Topic           string `json:"topic"`
}

// IsRandomTopic reports whether the topic is the "mix of topics" wildcard
func (c SelectionCriteria) IsRandomTopic() bool {
	return c.Topic == TopicRandom
}

// DictionaryItem is one selectable option shown by the frontend
type DictionaryItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Specializations lists the supported interview tracks
var Specializations = []DictionaryItem{
	{ID: SpecializationProductAnalyst, Name: "Product Analyst"},
	{ID: SpecializationDataAnalyst, Name: "Data Analyst"},
}

// ExperienceLevels lists the supported seniority levels
var ExperienceLevels = []DictionaryItem{
	{ID: LevelJunior, Name: "Junior"},
	{ID: LevelMiddle, Name: "Middle"},
	{ID: LevelSenior, Name: "Senior"},
}

// CompanyTiers lists the supported company tiers
var CompanyTiers = []DictionaryItem{
	{ID: CompanyTier1, Name: "Tier 1", Description: "Яндекс, VK, Тинькофф, Ozon, Avito и др."},
	{ID: CompanyTier2, Name: "Tier 2", Description: "Крупные компании с сильными командами"},
}

// Topics lists the supported question topics, including the random mix
var Topics = []DictionaryItem{
	{ID: "statistics", Name: "Статистика"},
	{ID: "ab_testing", Name: "A/B тестирование"},
	{ID: "probability", Name: "Теория вероятностей"},
	{ID: "python", Name: "Python"},
	{ID: "sql", Name: "SQL"},
	{ID: TopicRandom, Name: "Рандом (микс тем)"},
}

func containsID(items []DictionaryItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Validate checks every criterion against the dictionaries
func (c SelectionCriteria) Validate() error {
	switch {
	case !containsID(Specializations, c.Specialization):
		return &ValidationError{Field: "specialization", Value: c.Specialization}
	case !containsID(ExperienceLevels, c.ExperienceLevel):
		return &ValidationError{Field: "experience_level", Value: c.ExperienceLevel}
	case !containsID(CompanyTiers, c.CompanyTier):
		return &ValidationError{Field: "company_tier", Value: c.CompanyTier}
	case !containsID(Topics, c.Topic):
		return &ValidationError{Field: "topic", Value: c.Topic}
	}
	return nil
}

// ValidationError reports an unknown dictionary value
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}
