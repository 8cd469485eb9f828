// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

const maxFieldLength = 64

// IsValidArticle проверяет, что артикул не пуст, не длиннее допустимого
// и не содержит пробельных символов.
func IsValidArticle(article string) bool {
	if article == "" || len(article) > maxFieldLength {
		return false
	}
	for _, r := range article {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// IsValidUsername проверяет, что имя пользователя не пусто и не длиннее допустимого.
func IsValidUsername(username string) bool {
	trimmed := strings.TrimSpace(username)
	return trimmed != "" && trimmed == username && len(username) <= maxFieldLength
}

// NormalizePagination приводит параметры страницы к допустимым значениям.
func NormalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
