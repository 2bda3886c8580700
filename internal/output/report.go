package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/marcus/pratica/internal/models"
)

// StatsMarkdown builds the markdown progress report rendered by
// `pratica stats --report`.
func StatsMarkdown(s models.Stats) string {
	var sb strings.Builder
	t := s.Totals

	sb.WriteString("# Progresso\n\n")
	sb.WriteString("| | |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Tentativas | %s |\n", humanize.Comma(int64(t.Attempts))))
	sb.WriteString(fmt.Sprintf("| Acertos | %s |\n", humanize.Comma(int64(t.Correct))))
	sb.WriteString(fmt.Sprintf("| Aproveitamento | %s |\n", FormatPercent(t.Accuracy)))
	sb.WriteString(fmt.Sprintf("| Questões distintas | %d |\n", t.UniqueQuestionCount))
	last := "never"
	if t.LastAttemptAt != nil {
		last = FormatMillisAgo(*t.LastAttemptAt)
	}
	sb.WriteString(fmt.Sprintf("| Última tentativa | %s |\n", last))

	writeTallies(&sb, "Por categoria", s.ByCategory)
	writeTallies(&sb, "Por dificuldade", s.ByDifficulty)

	if len(s.RecentAttempts) > 0 {
		sb.WriteString("\n## Recentes\n\n")
		for _, a := range s.RecentAttempts {
			mark := "✗"
			if a.Correct {
				mark = "✓"
			}
			sb.WriteString(fmt.Sprintf("- %s questão %s, %s\n", mark, a.QuestionID, FormatMillisAgo(a.At)))
		}
	}
	return sb.String()
}

func writeTallies(sb *strings.Builder, title string, tallies map[string]models.Tally) {
	if len(tallies) == 0 {
		return
	}
	keys := make([]string, 0, len(tallies))
	for k := range tallies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := tallies[keys[i]], tallies[keys[j]]
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		return keys[i] < keys[j]
	})

	sb.WriteString(fmt.Sprintf("\n## %s\n\n| | Tentativas | Aproveitamento |\n|---|---|---|\n", title))
	for _, k := range keys {
		tl := tallies[k]
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", k, tl.Attempts, FormatPercent(tl.Accuracy())))
	}
}
