// Package output provides styled terminal output helpers (success, error,
// warning, question and stats formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	favStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	phaseStyles  = map[string]lipgloss.Style{
		"normal": lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"warn":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		"danger": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeDatabaseError    = "database_error"
	ErrCodeNotAuthenticated = "not_authenticated"
	ErrCodeSyncFailed       = "sync_failed"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// FormatMillisAgo is FormatTimeAgo for epoch milliseconds; zero is "never".
func FormatMillisAgo(ms int64) string {
	if ms <= 0 {
		return "never"
	}
	return FormatTimeAgo(models.TimeOf(ms))
}

// FormatPercent renders a 0..1 ratio as a whole percentage.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// FormatAccuracy renders "75% (3/4)", or "-" with no attempts.
func FormatAccuracy(correct, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%d/%d)", FormatPercent(float64(correct)/float64(total)), correct, total)
}

// ResultMark is a colored check or cross.
func ResultMark(correct bool) string {
	if correct {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}

// FavoriteMark is a star for favorites and a blank otherwise.
func FavoriteMark(fav bool) string {
	if fav {
		return favStyle.Render("★")
	}
	return " "
}

// FormatClock colors a countdown by its phase ("normal", "warn", "danger").
func FormatClock(phase, clock string) string {
	style, ok := phaseStyles[phase]
	if !ok {
		return clock
	}
	return style.Render(clock)
}

// FormatQuestionShort formats a question as one list line.
func FormatQuestionShort(q bank.Question, r *models.Rollup, fav bool) string {
	parts := []string{
		FavoriteMark(fav),
		titleStyle.Render(fmt.Sprintf("#%s", q.ID)),
		subtleStyle.Render(fmt.Sprintf("[%s]", models.QuestionTypeLabel(q.Type))),
		q.Summary(60),
	}
	if q.Category != "" {
		parts = append(parts, subtleStyle.Render(q.Category))
	}
	if r != nil && r.Count > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", ResultMark(r.LastCorrect), FormatAccuracy(r.Correct, r.Count)))
	}
	return strings.Join(parts, "  ")
}

// FormatQuestionLong formats a question with its options, progress and
// collection membership.
func FormatQuestionLong(q bank.Question, r *models.Rollup, fav bool, cols []models.Collection) string {
	var sb strings.Builder

	title := q.Title()
	if fav {
		title += " " + FavoriteMark(true)
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
	meta := []string{models.QuestionTypeLabel(q.Type)}
	if q.Category != "" {
		meta = append(meta, q.Category)
	}
	if q.Difficulty != "" {
		meta = append(meta, q.Difficulty)
	}
	sb.WriteString(subtleStyle.Render(strings.Join(meta, " | ")))
	sb.WriteString("\n")

	if q.BaseText != "" {
		sb.WriteString("\n")
		sb.WriteString(IndentString(q.BaseText, 2))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(q.Statement)
	sb.WriteString("\n")

	switch q.Type {
	case models.TypeMultipleChoice:
		for i, opt := range q.Options {
			sb.WriteString(fmt.Sprintf("  %c) %s\n", 'A'+i, opt))
		}
	case models.TypeTrueFalse:
		sb.WriteString("  (verdadeiro / falso)\n")
	}

	if r != nil && r.Count > 0 {
		sb.WriteString(SectionHeader("Progress"))
		sb.WriteString(fmt.Sprintf("  Accuracy: %s\n", FormatAccuracy(r.Correct, r.Count)))
		sb.WriteString(fmt.Sprintf("  Last: %s %s\n", ResultMark(r.LastCorrect), FormatMillisAgo(r.LastAt)))
		sb.WriteString(fmt.Sprintf("  Streak: %d (best %d)\n", r.Streak, r.BestStreak))
	}
	if len(cols) > 0 {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		sb.WriteString(SectionHeader("Collections"))
		sb.WriteString(strings.Join(BulletList(names, 2), "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatAttempt formats one attempt as a list line.
func FormatAttempt(a models.Attempt) string {
	return strings.Join([]string{
		ResultMark(a.Correct),
		titleStyle.Render("#" + a.QuestionID),
		fmt.Sprintf("%q", a.Value.String()),
		subtleStyle.Render(FormatMillisAgo(a.At)),
	}, "  ")
}

// FormatSession formats a session as a list line.
func FormatSession(s models.Session) string {
	correct := 0
	for _, r := range s.Results {
		if r.Correct {
			correct++
		}
	}
	state := warningStyle.Render("open")
	if s.Finished() {
		state = subtleStyle.Render("finished")
	}
	return strings.Join([]string{
		titleStyle.Render(s.ID),
		fmt.Sprintf("%d questions", len(s.QuestionIDs)),
		fmt.Sprintf("answered %d, correct %d", len(s.Results), correct),
		state,
		subtleStyle.Render(FormatMillisAgo(s.StartedAt)),
	}, "  ")
}

// FormatCollection formats a collection as a list line.
func FormatCollection(c models.Collection) string {
	return fmt.Sprintf("%s  %s  %s", titleStyle.Render(c.ID), c.Name,
		subtleStyle.Render(fmt.Sprintf("%d questions", len(c.QuestionIDs))))
}

// FormatSyncMeta summarizes the last sync of one user.
func FormatSyncMeta(m models.SyncMeta) string {
	status := successStyle.Render("ok")
	if !m.LastSyncOK {
		status = errorStyle.Render("failed")
	}
	if m.LastSyncAt == 0 {
		status = subtleStyle.Render("never synced")
	}
	return fmt.Sprintf("Last sync: %s (%s)\nPulled %d attempts %s, pushed %d %s\nCollections: pulled %d, pushed %d, deleted %d",
		FormatMillisAgo(m.LastSyncAt), status,
		m.LastPullCount, FormatMillisAgo(m.LastPullAt),
		m.LastPushCount, FormatMillisAgo(m.LastPushAt),
		m.LastCollectionsPullCount, m.LastCollectionsPushCount, m.LastCollectionsDeleteCount)
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPROGRESS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentLines indents each line by the specified number of spaces
func IndentLines(lines []string, spaces int) []string {
	indent := strings.Repeat(" ", spaces)
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = indent + line
	}
	return result
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	return strings.Join(IndentLines(strings.Split(s, "\n"), spaces), "\n")
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
