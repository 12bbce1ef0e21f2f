package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eiim/monitor/pkg/models"
)

// FallbackSummary builds an extractive summary with no external dependency:
// the first three sentences longer than 50 characters.
func FallbackSummary(content string) string {
	if content == "" {
		return ""
	}
	var kept []string
	for _, s := range strings.Split(content, ".") {
		if len(strings.TrimSpace(s)) > 50 {
			kept = append(kept, strings.TrimSpace(s))
		}
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		if len(content) > 200 {
			return content[:200] + "..."
		}
		return content
	}
	return strings.Join(kept, ". ") + "."
}

// FallbackBrief assembles a templated markdown brief directly from the
// grouped articles, used whenever the model is unavailable.
func FallbackBrief(articles []*models.Article) *Brief {
	grouped := groupByCategory(articles)
	top := topCategories(grouped, 5)

	var b strings.Builder
	b.WriteString("# Daily Environmental Impact Investing Brief\n\n")
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "Today's brief covers %d key developments across %d categories in environmental impact investing. ",
		len(articles), len(top))
	fmt.Fprintf(&b, "Key focus areas include %s.\n\n", strings.Join(top, ", "))

	b.WriteString("## Key Developments by Category\n\n")
	for _, category := range sortedKeys(grouped) {
		fmt.Fprintf(&b, "### %s\n\n", titleCase(category))
		items := grouped[category]
		if len(items) > 3 {
			items = items[:3]
		}
		for _, a := range items {
			fmt.Fprintf(&b, "**%s** (%s)\n", a.Title, a.Source)
			summary := a.Summary
			if summary == "" {
				summary = truncate(a.Content, 150)
			}
			b.WriteString(summary + "\n\n")
		}
	}

	b.WriteString("## Market Implications\n\n")
	b.WriteString("Based on today's developments, key market trends include continued growth in environmental investing, ")
	b.WriteString("policy developments affecting carbon markets, and technological innovations in clean energy.\n")

	return &Brief{
		Content:       b.String(),
		ArticleCount:  len(articles),
		TopCategories: top,
		Model:         "fallback",
		GeneratedAt:   time.Now().UTC(),
	}
}

// FallbackTrendAnalysis is the placeholder returned when trend commentary
// cannot be generated.
func FallbackTrendAnalysis(points []TrendPoint, dataType string) *TrendAnalysis {
	return &TrendAnalysis{
		Analysis: fmt.Sprintf("Basic trend analysis for %s: %d data points analyzed. Detailed AI analysis unavailable - please check API configuration.",
			dataType, len(points)),
		DataType:    dataType,
		DataPoints:  len(points),
		GeneratedAt: time.Now().UTC(),
	}
}

func groupByCategory(articles []*models.Article) map[string][]*models.Article {
	grouped := make(map[string][]*models.Article)
	for _, a := range articles {
		category := a.Category
		if category == "" {
			category = "general"
		}
		grouped[category] = append(grouped[category], a)
	}
	return grouped
}

// topCategories returns up to n category names ordered by article count,
// ties broken alphabetically for stable output.
func topCategories(grouped map[string][]*models.Article, n int) []string {
	names := sortedKeys(grouped)
	sort.SliceStable(names, func(i, j int) bool {
		return len(grouped[names[i]]) > len(grouped[names[j]])
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

func sortedKeys(grouped map[string][]*models.Article) []string {
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func titleCase(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
