package services

import (
	"fmt"
	"strings"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

// AnswerReviewSystemPrompt instructs the model to grade a single answer
const AnswerReviewSystemPrompt = `Ты эксперт по проведению технических интервью на позиции Data Analyst и Product Analyst в крупных российских технологических компаниях.

Твоя задача: дать развёрнутую и конструктивную оценку ответа кандидата на вопрос интервью.

Формат ответа (JSON):
{
    "score": число от 0 до 100,
    "strengths": ["сильная сторона 1", "сильная сторона 2"],
    "improvements": ["что можно улучшить 1", "что можно улучшить 2"],
    "detailed_feedback": "Развёрнутый комментарий: что в ответе верно, что неверно и как его улучшить"
}

Критерии оценки:
- Правильность и полнота ответа
- Структурированность изложения
- Практическая применимость
- Знание теории и терминологии`

// ReportSystemPrompt instructs the model to summarize a whole interview
const ReportSystemPrompt = `Ты эксперт по карьерному развитию в сфере Data и Product Analytics.

По результатам мок-интервью нужно:
1. Дать общую оценку кандидата
2. Выделить общие сильные стороны
3. Определить области для улучшения
4. Дать конкретные рекомендации по обучению
5. Написать мотивирующее сообщение

Формат ответа (JSON):
{
    "overall_score": число от 0 до 100,
    "overall_strengths": ["сильная сторона 1", "сильная сторона 2"],
    "areas_to_improve": ["область 1", "область 2"],
    "study_recommendations": ["рекомендация 1", "рекомендация 2", "рекомендация 3"],
    "motivational_message": "Мотивирующее сообщение для кандидата"
}`

func buildAnswerPrompt(req ScoreRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Вопрос интервью (тема: %s):\n%s\n\n", req.Topic, req.Question)
	if req.ReferenceAnswer != "" {
		fmt.Fprintf(&b, "Эталонный ответ для контекста: %s\n\n", req.ReferenceAnswer)
	}
	fmt.Fprintf(&b, "Ответ кандидата:\n%s\n\n", req.Answer)
	b.WriteString("Дай оценку ответа кандидата в указанном JSON формате.")
	return b.String()
}

func orUnspecified(v string) string {
	if v == "" {
		return "не указано"
	}
	return v
}

func buildReportPrompt(req ReportRequest) string {
	var b strings.Builder
	b.WriteString("Профиль интервью:\n")
	fmt.Fprintf(&b, "- Специализация: %s\n", orUnspecified(req.Criteria.Specialization))
	fmt.Fprintf(&b, "- Уровень: %s\n", orUnspecified(req.Criteria.ExperienceLevel))
	fmt.Fprintf(&b, "- Tier компании: %s\n", orUnspecified(req.Criteria.CompanyTier))
	fmt.Fprintf(&b, "- Тема: %s\n\n", orUnspecified(req.Criteria.Topic))

	b.WriteString("Результаты по задачам:\n")
	for i, fb := range req.Feedbacks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Задача %d (оценка: %d/100):\n- Сильные стороны: %s\n- Нужно улучшить: %s\n",
			i+1, fb.Score, strings.Join(fb.Strengths, ", "), strings.Join(fb.Improvements, ", "))
	}
	b.WriteString("\nСформируй итоговый отчёт в JSON формате.")
	return b.String()
}

// feedbackSummaryText renders a feedback record as plain text for the audit log
func feedbackSummaryText(fb models.TaskFeedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Оценка: %d/100\n", fb.Score)
	if len(fb.Strengths) > 0 {
		fmt.Fprintf(&b, "Сильные стороны: %s\n", strings.Join(fb.Strengths, "; "))
	}
	if len(fb.Improvements) > 0 {
		fmt.Fprintf(&b, "Что улучшить: %s\n", strings.Join(fb.Improvements, "; "))
	}
	b.WriteString(fb.DetailedFeedback)
	return b.String()
}
