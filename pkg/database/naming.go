package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Naming helpers: snake_case <-> camelCase, sadece "_id" son ekinden önceki
// kısım dönüştürülür. "_id" ile bitmeyen kolonlar hiçbir zaman dönüştürülmez.

var titleCaser = cases.Title(language.Und, cases.NoLower)

// snakeToCamel, "project_gallery" → "projectGallery".
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(titleCaser.String(part))
	}
	return b.String()
}

// camelToSnake, "projectGallery" → "project_gallery". Küçük harf veya rakamdan
// sonra gelen her büyük harften önce "_" eklenir, sonra tamamı küçültülür.
func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// idVariants, "_id" ile biten bir kolonun snake ve camel varyantlarını döndürür.
// Orijinal isim ve tekrarlar listeye girmez.
//
//	idVariants("project_gallery_id") → ["projectGallery_id"]
//	idVariants("projectGallery_id")  → ["project_gallery_id"]
//	idVariants("name")               → nil
func idVariants(column string) []string {
	if !strings.HasSuffix(column, "_id") || len(column) <= len("_id") {
		return nil
	}
	base := strings.TrimSuffix(column, "_id")

	var out []string
	seen := map[string]bool{column: true}
	for _, candidate := range []string{camelToSnake(base) + "_id", snakeToCamel(base) + "_id"} {
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

func toUpperTrim(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
