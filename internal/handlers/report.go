package handlers

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ReportHTML renders the final report of a finished session as a standalone page
// GET /api/interview/session/:id/report.html
func (h *InterviewHandler) ReportHTML(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	report, err := h.interviews.GetReport(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	page, err := renderReportHTML(report)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}

func renderReportHTML(report *models.FinalReport) ([]byte, error) {
	var body bytes.Buffer
	if err := reportMarkdown.Convert([]byte(reportToMarkdown(report)), &body); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"ru\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Отчёт по интервью %s</title>\n", html.EscapeString(report.SessionID))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// mdText neutralizes markdown control characters in candidate-supplied text.
// Raw HTML is already dropped by goldmark's default renderer.
func mdText(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "#", `\#`,
		"[", `\[`, "]", `\]`, "|", `\|`, "<", "&lt;", ">", "&gt;",
	)
	return replacer.Replace(s)
}

func writeList(md *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(md, "### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(md, "- %s\n", mdText(item))
	}
	md.WriteString("\n")
}

func reportToMarkdown(report *models.FinalReport) string {
	var md strings.Builder

	md.WriteString("# Отчёт по интервью\n\n")
	fmt.Fprintf(&md, "**Итоговая оценка:** %d/100\n\n", report.OverallScore)
	if !report.CompletedAt.IsZero() {
		fmt.Fprintf(&md, "Завершено: %s\n\n", report.CompletedAt.Format("02.01.2006 15:04"))
	}

	if len(report.TaskFeedbacks) > 0 {
		md.WriteString("| # | Вопрос | Оценка |\n|---|---|---|\n")
		for i, fb := range report.TaskFeedbacks {
			question := strings.ReplaceAll(fb.Question, "\n", " ")
			fmt.Fprintf(&md, "| %d | %s | %d |\n", i+1, mdText(question), fb.Score)
		}
		md.WriteString("\n")
	}

	writeList(&md, "Сильные стороны", report.OverallStrengths)
	writeList(&md, "Над чем поработать", report.AreasToImprove)
	writeList(&md, "Что изучить", report.StudyRecommendations)

	for i, fb := range report.TaskFeedbacks {
		fmt.Fprintf(&md, "## Вопрос %d\n\n%s\n\n", i+1, mdText(fb.Question))
		fmt.Fprintf(&md, "**Ваш ответ:**\n\n> %s\n\n", strings.ReplaceAll(mdText(fb.Answer), "\n", "\n> "))
		if fb.DetailedFeedback != "" {
			fmt.Fprintf(&md, "%s\n\n", mdText(fb.DetailedFeedback))
		}
		writeList(&md, "Плюсы", fb.Strengths)
		writeList(&md, "Что улучшить", fb.Improvements)
	}

	if report.MotivationalMessage != "" {
		fmt.Fprintf(&md, "---\n\n*%s*\n", mdText(report.MotivationalMessage))
	}
	return md.String()
}
