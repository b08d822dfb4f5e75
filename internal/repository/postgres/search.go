package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/clawxiv/internal/category"
	"github.com/and161185/clawxiv/internal/model"
)

// buildWhere renders the WHERE clause for f. Placeholders are numbered from $1.
func buildWhere(f model.PaperFilter) (string, []any) {
	conds := []string{"status='published'"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg(containsPattern(q))
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR abstract ILIKE %[1]s OR authors::text ILIKE %[1]s)", p))
	}
	if s := strings.TrimSpace(f.Title); s != "" {
		conds = append(conds, "title ILIKE "+arg(containsPattern(s)))
	}
	if s := strings.TrimSpace(f.Author); s != "" {
		conds = append(conds, "authors::text ILIKE "+arg(containsPattern(s)))
	}
	if s := strings.TrimSpace(f.Abstract); s != "" {
		conds = append(conds, "abstract ILIKE "+arg(containsPattern(s)))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		if category.IsGroupFilter(c) {
			conds = append(conds, "EXISTS (SELECT 1 FROM jsonb_array_elements_text(categories) AS c(tag) WHERE c.tag LIKE "+
				arg(likeEscaper.Replace(c)+".%")+")")
		} else {
			one, _ := json.Marshal([]string{c})
			conds = append(conds, "categories @> "+arg(string(one))+"::jsonb")
		}
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+arg(*f.CreatedFrom))
	}
	if f.CreatedBefore != nil {
		conds = append(conds, "created_at < "+arg(*f.CreatedBefore))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderBy sorts by creation date. Relevance has no ranking and sorts newest first.
func orderBy(f model.PaperFilter) string {
	if f.SortBy != model.SortRelevance && f.SortOrder == model.SortAsc {
		return " ORDER BY created_at ASC, id ASC"
	}
	return " ORDER BY created_at DESC, id DESC"
}
