package services

import (
	"strconv"
	"strings"

	"github.com/AnshRaj112/echoes-backend/internal/models"
)

// predicates collects SQL conditions that are ANDed together. Conditions are written
// with "?" markers which are renumbered into $n placeholders in the order they were added.
type predicates struct {
	clauses []string
	args    []interface{}
}

func (p *predicates) add(clause string, args ...interface{}) {
	var b strings.Builder
	i := 0
	for _, r := range clause {
		if r == '?' && i < len(args) {
			p.args = append(p.args, args[i])
			i++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(p.args)))
			continue
		}
		b.WriteRune(r)
	}
	p.clauses = append(p.clauses, b.String())
}

func (p *predicates) where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.clauses, " AND ")
}

const listMemoriesSelect = `
	SELECT m.id, m.title, m.content, m.memory_date, m.emotion_id,
		COALESCE(e.name, '') AS emotion_name,
		COALESCE(m.image_path, ''), COALESCE(m.audio_path, ''),
		COALESCE(STRING_AGG(t.name, ', ' ORDER BY t.name), '') AS tag_list,
		m.created_at
	FROM memories m
	LEFT JOIN emotions e ON e.id = m.emotion_id
	LEFT JOIN memory_tags mt ON mt.memory_id = m.id
	LEFT JOIN tags t ON t.id = mt.tag_id
`

// buildListMemoriesQuery returns the dashboard query for owner narrowed by filter.
// The tag filter is an EXISTS subquery so the aggregated tag_list still shows every tag.
func buildListMemoriesQuery(owner int64, filter models.MemoryFilter) (string, []interface{}) {
	var p predicates
	p.add("m.user_id = ?", owner)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		p.add("(m.title ILIKE ? OR m.content ILIKE ?)", pattern, pattern)
	}
	if emotion := strings.TrimSpace(filter.Emotion); emotion != "" {
		p.add("LOWER(e.name) = LOWER(?)", emotion)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		p.add(`EXISTS (
			SELECT 1 FROM memory_tags fmt
			JOIN tags ft ON ft.id = fmt.tag_id
			WHERE fmt.memory_id = m.id AND LOWER(ft.name) = LOWER(?)
		)`, tag)
	}

	query := listMemoriesSelect + p.where() + `
	GROUP BY m.id, e.name
	ORDER BY m.memory_date DESC, m.id DESC`
	return query, p.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
