package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

// Колонки листа импорта: Вопрос | Варианты (через ;) | Правильный (1-based) | Лимит, сек | Очки
const importMinColumns = 3

// ImportQuestionsXLSX читает вопросы из XLSX-файла и добавляет их в сессию.
// Первая строка листа — заголовки, пропускается. Колонки лимита и очков
// опциональны.
func (s *SessionService) ImportQuestionsXLSX(sessionID uint, userID uint, r io.Reader) ([]entity.Question, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read XLSX file: %v", apperrors.ErrValidation, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: XLSX file has no sheets", apperrors.ErrValidation)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %q: %v", apperrors.ErrValidation, sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: sheet %q has no question rows", apperrors.ErrValidation, sheet)
	}

	inputs := make([]QuestionInput, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		input, err := parseQuestionRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		inputs = append(inputs, *input)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no question rows", apperrors.ErrValidation, sheet)
	}

	return s.AddQuestions(sessionID, userID, inputs)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseQuestionRow(row []string) (*QuestionInput, error) {
	if len(row) < importMinColumns {
		return nil, fmt.Errorf("%w: expected at least %d columns", apperrors.ErrValidation, importMinColumns)
	}

	options := splitOptions(row[1])

	correct, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Errorf("%w: correct option must be a number", apperrors.ErrValidation)
	}

	input := &QuestionInput{
		Text:    strings.TrimSpace(row[0]),
		Options: options,
		// В файле нумерация вариантов с единицы
		CorrectOption: correct - 1,
	}

	if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("%w: time limit must be a number", apperrors.ErrValidation)
		}
		input.TimeLimitSec = limit
	}
	if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
		points, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("%w: point value must be a number", apperrors.ErrValidation)
		}
		input.PointValue = points
	}

	return input, nil
}

func splitOptions(cell string) []string {
	parts := strings.Split(cell, ";")
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	return options
}
